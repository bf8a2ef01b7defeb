package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
	"github.com/trezcool/escolar/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp     = errors.New("help provided")
	errNoDB     = errors.New("migrations need a SQL database (database driver is \"memory\")")
	errBadRole  = errors.New("role must be one of: admin, owner, teacher, student")
	roleAliases = map[string][]string{
		"admin":   {user.RoleAdmin},
		"owner":   user.AdminRoles,
		"teacher": user.TeacherRoles,
		"student": user.StudentRoles,
	}
)

type commandLine struct {
	db         *sql.DB // nil with the in-memory database
	usrRepo    user.Repository
	schoolRepo school.Repository
	dashboard  *dashboard.Service
	logger     core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-role admin|owner|teacher|student] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS...] - run goose migrations (up, down, status, ...)")
	fmt.Println("  seed [-students N] [-weeks N] - create a demo school")
	fmt.Println("  snapshot [-period ID] [-subject ID] [-group ID] [-interval week|month] - store the current metrics")
	fmt.Println("  sendreports [-student ID]... - email the grade reports of active students")
}

// promptPassword reads a password without echo. An empty password is an error.
func promptPassword(prompt string, usage func()) (string, error) {
	fmt.Print(prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", "admin", "One of: admin, owner, teacher, student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedStudents := seedCmd.Int("students", 24, "Number of demo students.")
	seedWeeks := seedCmd.Int("weeks", 8, "Number of weeks of classes.")

	snapshotCmd := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	var snapFilter school.Filter
	snapshotCmd.StringVar(&snapFilter.PeriodID, "period", "", "Period ID.")
	snapshotCmd.StringVar(&snapFilter.SubjectID, "subject", "", "Subject ID.")
	snapshotCmd.StringVar(&snapFilter.GroupID, "group", "", "Group ID.")
	snapInterval := snapshotCmd.String("interval", "", "Trend interval: week or month.")

	sendReportsCmd := flag.NewFlagSet("sendreports", flag.ContinueOnError)
	var reportStudents stringsFlag
	sendReportsCmd.Var(&reportStudents, "student", "A student ID (repeatable). Defaults to every active student.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		roles, ok := roleAliases[*addUserRole]
		if !ok {
			return errBadRole
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:", addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter password:", resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *seedStudents <= 0 || *seedWeeks <= 0 {
			seedCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword("Enter the demo users' password:", seedCmd.Usage)
		if err != nil {
			return err
		}
		return cli.seed(*seedStudents, *seedWeeks, pwd)

	case "snapshot":
		if err := snapshotCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.snapshot(snapFilter, *snapInterval)

	case "sendreports":
		if err := sendReportsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.sendReports(reportStudents)

	default:
		cli.printUsage()
		return errHelp
	}
}

// stringsFlag collects a repeatable flag.
type stringsFlag []string

func (f *stringsFlag) String() string { return fmt.Sprint(*f) }

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}
