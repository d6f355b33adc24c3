package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youknow/checklist/core"
	"github.com/youknow/checklist/core/user"
	inmemdb "github.com/youknow/checklist/storage/database/inmem"
	"github.com/youknow/checklist/testutil"
)

func TestNewUser_Validate(t *testing.T) {
	ctx := context.Background()
	validate, translator := testutil.NewValidator()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo)
	testutil.CreateUser(t, repo, "Taken", "taken", "taken@test.cd", "", nil, true)

	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields map[string]string
	}{
		{
			name: "valid",
			nu:   user.NewUser{Name: "Jane", Username: "Jane_D", Email: "JANE@test.cd", Password: "Sup3r$ecret", PasswordConfirm: "Sup3r$ecret", Roles: []string{user.RoleEmployee}},
		},
		{
			name:       "missing name & confirmation",
			nu:         user.NewUser{Username: "jane", Password: "Sup3r$ecret"},
			wantFields: map[string]string{"name": "this field is required", "password_confirm": "this field is required"},
		},
		{
			name:       "neither username nor email",
			nu:         user.NewUser{Name: "Jane", Password: "Sup3r$ecret", PasswordConfirm: "Sup3r$ecret"},
			wantFields: map[string]string{"username": "one of username or email is required", "email": "one of username or email is required"},
		},
		{
			name:       "unknown role",
			nu:         user.NewUser{Name: "Jane", Username: "jane", Password: "Sup3r$ecret", PasswordConfirm: "Sup3r$ecret", Roles: []string{"boss:"}},
			wantFields: map[string]string{"roles": "invalid roles"},
		},
		{
			name:       "password too short",
			nu:         user.NewUser{Name: "Jane", Username: "jane", Password: "S3$a", PasswordConfirm: "S3$a"},
			wantFields: map[string]string{"password": "password must contain at least 8 characters"},
		},
		{
			name:       "password all numeric",
			nu:         user.NewUser{Name: "Jane", Username: "jane", Password: "1234567890", PasswordConfirm: "1234567890"},
			wantFields: map[string]string{"password": "password cannot be entirely numeric"},
		},
		{
			name:       "password with space",
			nu:         user.NewUser{Name: "Jane", Username: "jane", Password: "Sup3r $ecret", PasswordConfirm: "Sup3r $ecret"},
			wantFields: map[string]string{"password": "password must not contain whitespace"},
		},
		{
			name:       "password not complex",
			nu:         user.NewUser{Name: "Jane", Username: "jane", Password: "supersecret", PasswordConfirm: "supersecret"},
			wantFields: map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		},
		{
			name:       "password similar to username",
			nu:         user.NewUser{Name: "Jane", Username: "janedoe99", Password: "Janedoe99!", PasswordConfirm: "Janedoe99!"},
			wantFields: map[string]string{"password": "password cannot be similar to user attributes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(ctx, validate, svc)
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Equal(t, "jane_d", nu.Username)
				assert.Equal(t, "jane@test.cd", nu.Email)
				return
			}
			var vErrs validator.ValidationErrors
			require.IsType(t, vErrs, err)
			assert.Equal(t, tt.wantFields, core.TranslateErrors(err.(validator.ValidationErrors), translator))
		})
	}

	nu := user.NewUser{Name: "Jane", Username: "taken", Password: "Sup3r$ecret", PasswordConfirm: "Sup3r$ecret"}
	err := nu.Validate(ctx, validate, svc)
	assert.True(t, core.IsValidation(err))
}

func TestService(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo)

	usr, err := svc.Create(ctx, user.NewUser{Name: "Jane", Username: "jane", Email: "jane@test.cd", Password: "Sup3r$ecret", Roles: []string{user.RoleEmployee}})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsEmployee())
	assert.NoError(t, usr.CheckPassword("Sup3r$ecret"))

	got, err := svc.GetByUsernameOrEmail(ctx, " JANE@test.cd ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	got, err = svc.Update(ctx, usr.ID, user.UpdateUser{Name: "Jane Doe", Username: "jane", Email: "jane@test.cd", IsActive: testutil.BoolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.False(t, got.IsActive)

	require.NoError(t, svc.ResetPassword(ctx, "jane", "N3w$ecret"))
	got, err = svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("N3w$ecret"))

	got, err = svc.SetLastLogin(ctx, got)
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())

	users, err := svc.Query(ctx, &user.QueryFilter{Roles: []string{"employee"}}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, svc.Delete(ctx, usr.ID))
	_, err = svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
}
