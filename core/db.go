package core

import (
	"context"
	"database/sql"
	"regexp"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var orderingFieldRegex = regexp.MustCompile(`^[a-z_]+(\.[a-z_]+)?$`)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// IsValid reports whether the ordering field is a plain (optionally qualified) column name.
func (ord DBOrdering) IsValid() bool {
	return orderingFieldRegex.MatchString(ord.Field)
}

// FilterOrderings keeps the orderings whose field is one of `allowed`.
func FilterOrderings(ordering []DBOrdering, allowed ...string) []DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}
	res := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := allowedSet[ord.Field]; ok && ord.IsValid() {
			res = append(res, ord)
		}
	}
	return res
}
