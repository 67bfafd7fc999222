package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/repository/memory"
	apperrors "github.com/supportdesk/ticket-api/pkg/util"
)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	f.revoked[id] = true
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	return f.revoked[id], f.err
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, *memory.Store, *fakeRevocations) {
	t.Helper()
	store := memory.NewStore()
	tokens := NewTokenManager("secret", time.Hour)
	revocations := &fakeRevocations{revoked: map[string]bool{}}
	mw := NewAuthMiddleware(tokens, store.Users(), revocations)

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
	}})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.SendString(p.User.Email)
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tokens, store, revocations
}

func doGet(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens, store, revocations := newTestApp(t)
	ctx := context.Background()

	user := &domain.User{Name: "Ann", Email: "ann@example.com", Role: domain.RoleUser}
	require.NoError(t, store.Users().Create(ctx, user))
	token, _, err := tokens.GenerateToken(user)
	require.NoError(t, err)

	t.Run("missing header", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", "").StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", "abc").StatusCode)
	})

	t.Run("valid token", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, doGet(t, app, "/me", token).StatusCode)
	})

	t.Run("user role cannot reach admin route", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, doGet(t, app, "/admin", token).StatusCode)
	})

	t.Run("role is reloaded from the store", func(t *testing.T) {
		user.Role = domain.RoleAdmin
		require.NoError(t, store.Users().Update(ctx, user))
		assert.Equal(t, http.StatusNoContent, doGet(t, app, "/admin", token).StatusCode)
	})

	t.Run("revoked token", func(t *testing.T) {
		claims, err := tokens.ParseToken(token)
		require.NoError(t, err)
		require.NoError(t, revocations.Revoke(ctx, claims.ID, time.Now().Add(time.Hour)))
		assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", token).StatusCode)
	})

	t.Run("revocation store failure", func(t *testing.T) {
		fresh, _, err := tokens.GenerateToken(user)
		require.NoError(t, err)
		revocations.err = errors.New("redis down")
		defer func() { revocations.err = nil }()
		assert.Equal(t, http.StatusInternalServerError, doGet(t, app, "/me", fresh).StatusCode)
	})
}

func TestAuthMiddleware_DeletedUser(t *testing.T) {
	app, tokens, _, _ := newTestApp(t)
	token, _, err := tokens.GenerateToken(&domain.User{ID: 99, Role: domain.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doGet(t, app, "/me", token).StatusCode)
}
