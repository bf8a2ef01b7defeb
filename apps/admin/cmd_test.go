package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/stats"
	"github.com/trezcool/escolar/core/user"
	emailsvc "github.com/trezcool/escolar/services/email"
	exportsvc "github.com/trezcool/escolar/services/export"
	dummydb "github.com/trezcool/escolar/storage/database/dummy"
	testutil "github.com/trezcool/escolar/tests"
)

var usrRepo user.Repository

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo = dummydb.NewUserRepository(db)
	schoolRepo := dummydb.NewSchoolRepository(db)

	conf := core.NewTestConfig()
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()
	mailer := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(conf, usrRepo, mailer)

	// start CLI
	return &commandLine{
		usrRepo:    usrRepo,
		schoolRepo: schoolRepo,
		dashboard: dashboard.NewService(conf, dashboard.Deps{
			Repo:    schoolRepo,
			Users:   usrSvc,
			Logger:  logger,
			Mailer:  mailer,
			Reports: exportsvc.NewXLSXWriter(),
		}),
		logger: logger,
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	args := []string{"admin", "migrate", "up"}
	if err := cli.run(args); err != errNoDB {
		t.Errorf("cli.run() error = %v, wantErr %v", err, errNoDB)
	}

	cli.db = new(sql.DB) // never used by the mock
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "grades_comment", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() expected an error")
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if errors.Cause(err) != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	mockPassword("s3cret-Pa55word")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "tess"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "tess", "-email", "tess@test.io", "-role", "dean"}, wantErr: errBadRole},
		{name: "create", args: []string{"adduser", "-username", "Tess", "-email", "tess@test.io", "-name", "Tess T", "-role", "teacher"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			assert.Equal(t, tt.wantErr, err)
		})
	}

	usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "tess"})
	require.NoError(t, err)
	assert.Equal(t, "Tess T", usr.Name)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsTeacher())
	assert.NoError(t, usr.CheckPassword("s3cret-Pa55word"))

	// promote, found by email
	mockPassword("n3w-Pa55word")
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "tessa", "-email", "tess@test.io"}))
	promoted, err := usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.Equal(t, "Tess T", promoted.Name)
	assert.True(t, promoted.IsAdmin())
	assert.NoError(t, promoted.CheckPassword("n3w-Pa55word"))
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	mockPassword("")
	assert.Equal(t, errHelp, cli.run([]string{"admin", "seed"}))
	assert.Equal(t, errHelp, cli.run([]string{"admin", "seed", "-weeks", "0"}))

	mockPassword("s3cret-Pa55word")
	require.NoError(t, cli.run([]string{"admin", "seed", "-students", "6", "-weeks", "4"}))

	students, err := usrRepo.CountUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles})
	require.NoError(t, err)
	assert.Equal(t, 6, students)

	groups, err := cli.schoolRepo.QueryGroups(ctx, school.GroupFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, groups, len(demoSubjects))

	metrics, err := cli.dashboard.ComputeMetrics(ctx, school.Filter{}, stats.Weekly)
	require.NoError(t, err)
	assert.Equal(t, 6, metrics.Counts.Students)
	assert.Equal(t, 2, metrics.Counts.Teachers)
	assert.NotEmpty(t, metrics.GradeTrend)
	for _, att := range metrics.Attendance {
		assert.True(t, att.Percentage >= 0 && att.Percentage <= 100)
	}

	// demo users already exist
	assert.Error(t, cli.run([]string{"admin", "seed", "-students", "1", "-weeks", "1"}))
}

func Test_commandLine_dashboard(t *testing.T) {
	cli := setup(t)

	err := cli.run([]string{"admin", "snapshot", "-interval", "year"})
	assert.Equal(t, stats.ErrInvalidInterval, errors.Cause(err))
	err = cli.run([]string{"admin", "snapshot", "-interval", "month"})
	assert.Equal(t, dashboard.ErrSnapshotsDisabled, errors.Cause(err))

	mockPassword("s3cret-Pa55word")
	require.NoError(t, cli.run([]string{"admin", "seed", "-students", "3", "-weeks", "2"}))
	require.NoError(t, cli.run([]string{"admin", "sendreports"}))
	assert.Len(t, emailsvc.SentMessages, 3)

	students, err := usrRepo.QueryUsers(context.Background(), &user.QueryFilter{Usernames: []string{"student01"}}, nil)
	require.NoError(t, err)
	require.Len(t, students, 1)
	emailsvc.ClearSentMessages()
	require.NoError(t, cli.run([]string{"admin", "sendreports", "-student", students[0].ID}))
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, "student01@escolar.local", emailsvc.SentMessages[0].To[0].Address)
}

func Test_mondayOf(t *testing.T) {
	tests := []struct {
		day  int
		want int
	}{
		{day: 4, want: 4},  // 2021-01-04 is a monday
		{day: 6, want: 4},  // wednesday
		{day: 10, want: 4}, // sunday
		{day: 11, want: 11},
	}
	for _, tt := range tests {
		got := mondayOf(testutil.Date(2021, time.January, tt.day).Add(13 * time.Hour))
		assert.Equal(t, testutil.Date(2021, time.January, tt.want), got)
	}
}
