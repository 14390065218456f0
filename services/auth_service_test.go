package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/models"
	"outreach/utils"
)

func newAuthFixture(t *testing.T) (*fixtures, *UserService, *AuthService, *models.User) {
	f := newFixtures(t)
	users := NewUserService(f.db)
	auth := NewAuthService(f.db, 3)

	user, err := users.Create(context.Background(), CreateUserInput{
		Email:    "sam@example.com",
		Password: "correct-horse",
		Name:     "Sam",
	})
	require.NoError(t, err)
	return f, users, auth, user
}

func TestLoginSuccess(t *testing.T) {
	f, _, auth, user := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(user).Update("failed_login_attempts", 2).Error)

	result, err := auth.Login(ctx, "SAM@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Zero(t, result.User.FailedLoginAttempts)
	assert.NotNil(t, result.User.LastLoginAt)

	authed, err := auth.Authenticate(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCommercial, authed.Role)

	// refresh tokens are not accepted as access tokens and vice versa
	_, err = auth.Authenticate(ctx, result.RefreshToken)
	requireAppError(t, err, http.StatusUnauthorized)
	_, err = auth.Refresh(ctx, result.AccessToken)
	requireAppError(t, err, http.StatusUnauthorized)

	access, err := auth.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
}

func TestLoginLockout(t *testing.T) {
	_, _, auth, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := auth.Login(ctx, "unknown@example.com", "x")
	requireAppError(t, err, http.StatusUnauthorized)

	for i := 0; i < 3; i++ {
		_, err = auth.Login(ctx, "sam@example.com", "wrong")
		requireAppError(t, err, http.StatusUnauthorized)
	}

	_, err = auth.Login(ctx, "sam@example.com", "correct-horse")
	requireAppError(t, err, http.StatusLocked)
}

func TestLoginInactive(t *testing.T) {
	_, users, auth, user := newAuthFixture(t)
	ctx := context.Background()

	login, err := auth.Login(ctx, "sam@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, users.Deactivate(ctx, user.ID))

	_, err = auth.Login(ctx, "sam@example.com", "correct-horse")
	requireAppError(t, err, http.StatusForbidden)

	_, err = auth.Authenticate(ctx, login.AccessToken)
	requireAppError(t, err, http.StatusForbidden)

	_, err = auth.Refresh(ctx, login.RefreshToken)
	requireAppError(t, err, http.StatusForbidden)
}

func TestAuthenticateGarbage(t *testing.T) {
	_, _, auth, _ := newAuthFixture(t)

	_, err := auth.Authenticate(context.Background(), "not-a-token")
	requireAppError(t, err, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	_, _, auth, user := newAuthFixture(t)
	ctx := context.Background()

	err := auth.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "new-password"})
	requireAppError(t, err, http.StatusUnauthorized)

	require.NoError(t, auth.ChangePassword(ctx, user.ID, ChangePasswordInput{CurrentPassword: "correct-horse", NewPassword: "new-password"}))

	_, err = auth.Login(ctx, "sam@example.com", "new-password")
	require.NoError(t, err)
}

func TestUserManagement(t *testing.T) {
	f, users, auth, sam := newAuthFixture(t)
	ctx := context.Background()

	_, err := users.Create(ctx, CreateUserInput{Email: "sam@example.com", Password: "whatever1", Name: "Dup"})
	requireAppError(t, err, http.StatusConflict)

	admin, err := users.Create(ctx, CreateUserInput{Email: "root@example.com", Password: "whatever1", Name: "Root", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = users.Update(ctx, admin.ID, UpdateUserInput{Email: utils.Pointer("sam@example.com")})
	requireAppError(t, err, http.StatusConflict)

	viewer := models.RoleViewer
	updated, err := users.Update(ctx, sam.ID, UpdateUserInput{Role: &viewer})
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, updated.Role)

	require.NoError(t, users.Deactivate(ctx, sam.ID))
	stats, err := users.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Active)
	assert.EqualValues(t, 1, stats.Inactive)
	assert.EqualValues(t, 1, stats.ByRole[models.RoleAdmin])
	assert.EqualValues(t, 1, stats.ByRole[models.RoleViewer])

	inactive := false
	list, total, err := users.List(ctx, UserFilter{Pagination: utils.NewPagination(1, 20), Active: &inactive})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, sam.ID, list[0].ID)

	_, _, err = users.List(ctx, UserFilter{Pagination: utils.NewPagination(1, 20), Role: "root"})
	requireAppError(t, err, http.StatusBadRequest)

	require.NoError(t, users.Reactivate(ctx, sam.ID))
	require.NoError(t, f.db.Model(sam).Update("failed_login_attempts", 10).Error)
	require.NoError(t, users.ResetPassword(ctx, sam.ID, "brand-new-pass"))
	_, err = auth.Login(ctx, "sam@example.com", "brand-new-pass")
	require.NoError(t, err)

	err = users.ResetPassword(ctx, 999, "brand-new-pass")
	requireAppError(t, err, http.StatusNotFound)

	_, err = users.Create(ctx, CreateUserInput{Email: "blank@example.com", Password: "whatever1", Name: "  "})
	requireAppError(t, err, http.StatusBadRequest)
	_, err = users.Update(ctx, sam.ID, UpdateUserInput{Name: utils.Pointer(" ")})
	requireAppError(t, err, http.StatusBadRequest)
}

func TestEnsureAdmin(t *testing.T) {
	f := newFixtures(t)
	ctx := context.Background()
	users := NewUserService(f.db)

	require.NoError(t, users.EnsureAdmin(ctx, "admin@example.com", "bootstrap-pass", ""))
	require.NoError(t, users.EnsureAdmin(ctx, "admin@example.com", "bootstrap-pass", ""))
	require.NoError(t, users.EnsureAdmin(ctx, "", "", ""))

	admin, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.Equal(t, "Administrator", admin.Name)

	var n int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}
