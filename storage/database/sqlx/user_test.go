package sqlxrepos

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/user"
)

func TestWhere(t *testing.T) {
	active := true
	from := time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		wantCond string
		wantArgs []interface{}
	}{
		{name: "nil", filter: nil},
		{name: "empty", filter: &user.QueryFilter{}},
		{
			name:     "invalid ids",
			filter:   &user.QueryFilter{IDs: []string{"nope"}},
			wantCond: " WHERE FALSE",
		},
		{
			name:     "roles & active",
			filter:   &user.QueryFilter{Roles: []string{user.RoleAdmin, user.RoleTeacher}, IsActive: &active},
			wantCond: " WHERE (EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?) OR EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?)) AND is_active = ?",
			wantArgs: []interface{}{"admin:%", "teacher:%", true},
		},
		{
			name:     "search & created from",
			filter:   &user.QueryFilter{Search: "ann", CreatedFrom: from},
			wantCond: " WHERE (name ILIKE ? OR username ILIKE ? OR email ILIKE ?) AND created_at >= ?",
			wantArgs: []interface{}{"%ann%", "%ann%", "%ann%", from},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond, args := where(tt.filter)
			assert.Equal(t, tt.wantCond, cond)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestWhere_ExpandsLists(t *testing.T) {
	ids := []string{"0b6c5f4e-3f7a-4a43-9a55-0d6b9c0d7c01", "0b6c5f4e-3f7a-4a43-9a55-0d6b9c0d7c02"}
	cond, args := where(&user.QueryFilter{IDs: ids, Usernames: []string{"ann"}})

	query, args, err := sqlx.In("SELECT id FROM users"+cond, args...)
	assert.NoError(t, err)
	query = sqlx.Rebind(sqlx.DOLLAR, query)
	assert.Equal(t, "SELECT id FROM users WHERE id IN ($1, $2) AND username IN ($3)", query)
	assert.Equal(t, []interface{}{ids[0], ids[1], "ann"}, args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, " ORDER BY created_at DESC, id", orderBy(nil))
	assert.Equal(t, " ORDER BY name ASC, email DESC", orderBy([]core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "email"},
		{Field: "1; DROP TABLE users"},
	}))
}

func TestRowConversion(t *testing.T) {
	usr := user.User{ID: "id", Username: "ann", IsActive: true, CreatedAt: time.Now().UTC()}
	row := toRow(usr)
	assert.False(t, row.Name.Valid)
	assert.False(t, row.LastLogin.Valid)
	assert.NotNil(t, row.Roles)

	got := row.toUser()
	assert.Equal(t, "ann", got.Username)
	assert.Empty(t, got.Name)
	assert.True(t, got.LastLogin.IsZero())
}
