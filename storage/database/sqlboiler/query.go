package boiledrepos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/escolar/core"
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
	UseDefaultKeyword:    true,
}

func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

func getExec(defaultExec core.DBExecutor, exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 {
		return exec[0]
	}
	return defaultExec
}

// whereIn restricts `column` to `ids`. ok is false when no row can match (empty list or malformed IDs).
func whereIn(column string, ids []string) (mod qm.QueryMod, ok bool) {
	if len(ids) == 0 || !validIDs(ids...) {
		return nil, false
	}
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return qm.WhereIn(column+" IN ?", args...), true
}

// validIDs reports whether all non-empty `ids` are UUIDs, postgres rejects anything else.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func orderBy(ordering []core.DBOrdering, prefix string, fallback string) qm.QueryMod {
	if len(ordering) == 0 {
		return qm.OrderBy(fallback)
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		ord.Field = prefix + ord.Field
		orderList = append(orderList, ord.String())
	}
	return qm.OrderBy(strings.Join(orderList, ", "))
}
