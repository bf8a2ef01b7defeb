package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/user"
	"github.com/trezcool/escolar/storage/database"
)

const userColumns = "id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login"

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.IsActive,
		Roles:        roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	db sqlx.ExtContext
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db sqlx.ExtContext) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// in expands the `?` bindvars of `query` (slices included) for the repository driver.
func (repo userRepository) in(query string, args ...interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return repo.db.Rebind(query), args, nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User) error {
	query := "SELECT username, email FROM users WHERE (username = ? OR email = ?)"
	args := []interface{}{username, email}
	if ids := validIDs(excludedUsers...); len(ids) > 0 {
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}
	query, args, err := repo.in(query+" LIMIT 1", args...)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	var found struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	if err = sqlx.GetContext(ctx, repo.db, &found, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if found.Username.String == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	_, err := sqlx.NamedExecContext(ctx, repo.db, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at, :last_login)`,
		toRow(usr))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

// where builds the WHERE clause of `filter`, with `?` bindvars.
func where(filter *user.QueryFilter) (string, []interface{}) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}
	var (
		conds []string
		args  []interface{}
	)
	if filter.IDs != nil {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return " WHERE FALSE", nil
		}
		conds = append(conds, "id IN (?)")
		args = append(args, ids)
	}
	if filter.Usernames != nil {
		if len(filter.Usernames) == 0 {
			return " WHERE FALSE", nil
		}
		conds = append(conds, "username IN (?)")
		args = append(args, filter.Usernames)
	}
	// users with Name, Username or Email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds = append(conds, "(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)")
		args = append(args, val, val, val)
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, "EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ?)")
			args = append(args, role+"%")
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(ordering []core.DBOrdering) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if ord.IsValid() {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return " ORDER BY created_at DESC, id"
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	cond, args := where(filter)
	query, args, err := repo.in("SELECT "+userColumns+" FROM users"+cond+orderBy(ordering), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	var rows []userRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter) (int, error) {
	cond, args := where(filter)
	query, args, err := repo.in("SELECT COUNT(*) FROM users"+cond, args...)
	if err != nil {
		return 0, errors.Wrap(err, "counting users")
	}

	var cnt int
	if err = sqlx.GetContext(ctx, repo.db, &cnt, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return cnt, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "id = ?", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "username = ?", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "email = ?", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		cond, args = "(username = ? OR email = ?)", []interface{}{filter.UsernameOrEmail, filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	query := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + cond + " LIMIT 1")
	if err := sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := sqlx.NamedExecContext(ctx, repo.db, `
		UPDATE users SET
			name = :name, username = :username, email = :email, is_active = :is_active, roles = :roles,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		toRow(usr))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	query, args, err := repo.in("DELETE FROM users WHERE id IN (?)", valid)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}

func validIDs(users ...user.User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if _, err := uuid.Parse(u.ID); err == nil {
			ids = append(ids, u.ID)
		}
	}
	return ids
}
