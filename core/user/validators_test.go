package user

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escolar/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type uniqueSvc struct {
	Service
	err error
}

func (s uniqueSvc) CheckUniqueness(context.Context, string, string, ...User) error { return s.err }

func newValidator() (*validator.Validate, func(error) map[string]string) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})

	translate := func(err error) map[string]string {
		res := make(map[string]string)
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			for _, vErr := range vErrs {
				res[vErr.Field()] = vErr.Translate(translator)
			}
		}
		return res
	}
	return validate, translate
}

func TestNewUser_Validate(t *testing.T) {
	validate, translate := newValidator()
	ctx := context.Background()
	svc := uniqueSvc{}

	tests := []struct {
		name    string
		nu      NewUser
		wantErr map[string]string
	}{
		{
			name: "valid",
			nu: NewUser{Name: "Awe", Username: " Awe_01 ", Password: "Kin$hasa243", PasswordConfirm: "Kin$hasa243",
				Roles: []string{RoleStudent}},
		},
		{
			name:    "no username nor email",
			nu:      NewUser{Name: "Awe", Password: "Kin$hasa243", PasswordConfirm: "Kin$hasa243"},
			wantErr: map[string]string{"username": usernameOrEmailText, "email": usernameOrEmailText},
		},
		{
			name:    "invalid role",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "Kin$hasa243", PasswordConfirm: "Kin$hasa243", Roles: []string{"root:"}},
			wantErr: map[string]string{"roles": allRolesText},
		},
		{
			name:    "short password",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "Ab1$", PasswordConfirm: "Ab1$"},
			wantErr: map[string]string{"password": pwdMinLenText},
		},
		{
			name:    "whitespace",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "Kin hasa243$", PasswordConfirm: "Kin hasa243$"},
			wantErr: map[string]string{"password": pwdNoSpaceText},
		},
		{
			name:    "all numeric",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "24324324", PasswordConfirm: "24324324"},
			wantErr: map[string]string{"password": pwdNotAllNumText},
		},
		{
			name:    "not complex",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "kinshasa243", PasswordConfirm: "kinshasa243"},
			wantErr: map[string]string{"password": pwdComplexityText},
		},
		{
			name:    "similar to username",
			nu:      NewUser{Name: "Awe", Username: "kinshasa_243", Password: "Kinshasa_243", PasswordConfirm: "Kinshasa_243"},
			wantErr: map[string]string{"password": pwdAttrSimText},
		},
		{
			name:    "common",
			nu:      NewUser{Name: "Awe", Username: "awe_01", Password: "P@ssw0rd", PasswordConfirm: "P@ssw0rd"},
			wantErr: map[string]string{"password": pwdNoCommonText},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(ctx, validate, svc)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, translate(err))
		})
	}
}

func TestNewUser_ValidateCleansFields(t *testing.T) {
	validate, _ := newValidator()
	nu := NewUser{Name: "  Awe ", Username: " AWE_01", Email: " AWE@Test.CD ", Password: "Kin$hasa243", PasswordConfirm: "Kin$hasa243"}
	require.NoError(t, nu.Validate(context.Background(), validate, uniqueSvc{}))
	assert.Equal(t, "Awe", nu.Name)
	assert.Equal(t, "awe_01", nu.Username)
	assert.Equal(t, "awe@test.cd", nu.Email)
}

func TestNewUser_ValidateUniqueness(t *testing.T) {
	validate, _ := newValidator()
	nu := NewUser{Name: "Awe", Username: "awe_01", Password: "Kin$hasa243", PasswordConfirm: "Kin$hasa243"}
	err := nu.Validate(context.Background(), validate, uniqueSvc{err: core.NewValidationError(ErrUsernameExists)})
	assert.Error(t, err)
}

func TestUpdateUser_Validate(t *testing.T) {
	validate, translate := newValidator()
	orig := User{ID: "1", Name: "Awe", Username: "awe_01", Email: "awe@test.cd", Roles: []string{RoleTeacher}}

	uu := UpdateUser{Name: " "}
	require.NoError(t, uu.Validate(context.Background(), orig, validate, uniqueSvc{}))
	assert.Equal(t, orig.Name, uu.Name)
	assert.Equal(t, orig.Username, uu.Username)
	assert.Equal(t, orig.Email, uu.Email)
	assert.Equal(t, orig.Roles, uu.Roles)

	uu = UpdateUser{Password: "Kin$hasa243"}
	err := uu.Validate(context.Background(), orig, validate, uniqueSvc{})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"password_confirm": "this field is required"}, translate(err))
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, 1, MaxRolePriority([]string{RoleStudent}))
	assert.Equal(t, 29, MaxRolePriority([]string{RoleTeacher, RoleAdminPrincipal, RoleAdmin}))
}

func TestQueryFilter_Match(t *testing.T) {
	active := true
	usr := User{ID: "1", Name: "Grace Mbuyi", Username: "grace", Email: "grace@test.cd", IsActive: true, Roles: []string{RoleAdminPrincipal}}

	tests := []struct {
		name   string
		filter *QueryFilter
		want   bool
	}{
		{name: "nil", want: true},
		{name: "ids", filter: &QueryFilter{IDs: []string{"2", "1"}}, want: true},
		{name: "ids miss", filter: &QueryFilter{IDs: []string{"2"}}},
		{name: "usernames", filter: &QueryFilter{Usernames: []string{"grace"}}, want: true},
		{name: "search", filter: &QueryFilter{Search: "MBUYI"}, want: true},
		{name: "search miss", filter: &QueryFilter{Search: "kabila"}},
		{name: "role prefix", filter: &QueryFilter{Roles: []string{RoleAdmin}}, want: true},
		{name: "role miss", filter: &QueryFilter{Roles: []string{RoleStudent}}},
		{name: "is_active", filter: &QueryFilter{IsActive: &active}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(usr))
		})
	}
}
