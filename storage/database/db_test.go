package database

import (
	"database/sql"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/escolar/core"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "other", err: errors.New("boom"), want: false},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, want: true},
		{name: "pq fk", err: &pq.Error{Code: "23503"}, want: false},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "wrapped pgx unique", err: errors.Wrap(&pgconn.PgError{Code: "23505"}, "inserting"), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestDriverName(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Driver = "pgx"
	assert.Equal(t, "pgx", driverName(conf))
	conf.Database.Driver = "postgres"
	assert.Equal(t, "postgres", driverName(conf))
}

func TestMigrate(t *testing.T) {
	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()

	var gotCmd, gotDir string
	var gotArgs []string
	gooseRunFunc = func(cmd string, _ *sql.DB, fsys fs.FS, dir string, args ...string) error {
		gotCmd, gotDir, gotArgs = cmd, dir, args
		_, err := fs.Stat(fsys, dir+"/00002_create_school.sql")
		return err
	}

	assert.NoError(t, Migrate(nil, ""))
	assert.Equal(t, "up", gotCmd)
	assert.Equal(t, "migrations", gotDir)
	assert.Empty(t, gotArgs)

	assert.NoError(t, Migrate(nil, "down-to", "1"))
	assert.Equal(t, "down-to", gotCmd)
	assert.Equal(t, []string{"1"}, gotArgs)

	gooseRunFunc = func(string, *sql.DB, fs.FS, string, ...string) error { return errors.New("boom") }
	assert.Error(t, Migrate(nil, "up"))
}
