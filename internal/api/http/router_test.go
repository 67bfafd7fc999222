package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk/ticket-api/internal/api/http/handlers"
	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/config"
	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/mail"
	"github.com/supportdesk/ticket-api/internal/observability"
	"github.com/supportdesk/ticket-api/internal/repository/memory"
	"github.com/supportdesk/ticket-api/internal/service"
	"github.com/supportdesk/ticket-api/internal/worker"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type revocationSet struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (r *revocationSet) Revoke(_ context.Context, id string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = true
	return nil
}

func (r *revocationSet) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ids[id], nil
}

type testServer struct {
	app    *fiber.App
	users  *service.UserService
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, deps map[string]handlers.Pinger) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	revocations := &revocationSet{ids: map[string]bool{}}

	cfg := config.Config{
		Auth:         config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 30, BcryptCost: 4},
		Notification: config.NotificationConfig{FrontendURL: "http://desk.local"},
	}
	users := service.NewUserService(service.UserDependencies{UserRepo: store.Users(), TicketRepo: store.Tickets(), BcryptCost: 4})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.Tickets(), CommentRepo: store.Comments(), UserRepo: store.Users(),
		Dispatcher: dispatcher, Statuses: domain.DefaultTicketStatuses, Logger: logger,
	})
	authSvc := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: store.Users(), Users: users, Revocations: revocations})
	notifications := service.NewNotificationService(cfg.Notification, service.NotificationDependencies{
		Dispatcher: dispatcher, Mailer: mail.NewLogMailer(logger), UserRepo: store.Users(), Failures: metrics, Logger: logger,
	})
	worker.StartNotificationWorker(dispatcher, notifications, nil)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("ticket-api", "test", deps),
		Auth:           handlers.NewAuthHandler(authSvc),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Users:          handlers.NewUsersHandler(users),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), store.Users(), revocations),
		Metrics:        adaptor.HTTPHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})),
	})
	return &testServer{app: app, users: users, tokens: authSvc.TokenManager()}
}

// seedUser creates an account directly and returns its id and a bearer token.
func (s *testServer) seedUser(t *testing.T, name string, role domain.Role) (int64, string) {
	t.Helper()
	r := string(role)
	u, err := s.users.Register(context.Background(), service.UserCreateInput{
		Name: name, Email: name + "@example.com", Password: "password1", Role: &r,
	})
	require.NoError(t, err)
	token, _, err := s.tokens.GenerateToken(u)
	require.NoError(t, err)
	return u.ID, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, raw
}

func idPath(prefix string, id any, suffix string) string {
	switch v := id.(type) {
	case float64:
		return prefix + strconv.FormatInt(int64(v), 10) + suffix
	case int64:
		return prefix + strconv.FormatInt(v, 10) + suffix
	}
	panic("unsupported id")
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	status, body, raw := s.do(t, fiber.MethodPost, "/api/auth/register", "",
		map[string]any{"name": "Ann", "email": "ann@example.com", "password": "secret1", "role": "admin"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "user", user["role"], "self-registration never grants admin")
	assert.NotContains(t, string(raw), "password")

	status, body, _ = s.do(t, fiber.MethodPost, "/api/auth/register", "",
		map[string]any{"name": "Ann", "email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])

	status, body, _ = s.do(t, fiber.MethodPost, "/api/auth/register", "",
		map[string]any{"name": "Bob", "email": "nope", "password": "secret1"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	status, body, _ = s.do(t, fiber.MethodPost, "/api/auth/login", "",
		map[string]any{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", body["error"])

	status, body, _ = s.do(t, fiber.MethodPost, "/api/auth/login", "",
		map[string]any{"email": "ann@example.com", "password": "secret1"})
	require.Equal(t, fiber.StatusOK, status)
	token := body["token"].(string)

	status, _, _ = s.do(t, fiber.MethodGet, "/api/tickets", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _, _ = s.do(t, fiber.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body, _ = s.do(t, fiber.MethodGet, "/api/tickets", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestTicketRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.seedUser(t, "root", domain.RoleAdmin)
	_, annToken := s.seedUser(t, "ann", domain.RoleUser)
	_, bobToken := s.seedUser(t, "bob", domain.RoleUser)

	status, _, _ := s.do(t, fiber.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body, _ := s.do(t, fiber.MethodPost, "/api/tickets", annToken, map[string]any{"title": "VPN"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	status, ticket, raw := s.do(t, fiber.MethodPost, "/api/tickets", annToken, map[string]any{
		"title": "VPN", "description": "cannot connect", "category": "network", "priority": "high",
		"status": "closed",
	})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "ann@example.com", ticket["user"].(map[string]any)["email"])
	id := ticket["id"]

	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/tickets/", id, ""), annToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body, _ = s.do(t, fiber.MethodGet, idPath("/api/tickets/", id, ""), bobToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "ticket not found", body["error"])

	status, body, _ = s.do(t, fiber.MethodGet, "/api/tickets/abc", annToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])
	status, _, _ = s.do(t, fiber.MethodGet, "/api/tickets/-4", annToken, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPut, idPath("/api/tickets/", id, "/status"), bobToken, map[string]any{"status": "closed"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _, _ = s.do(t, fiber.MethodPut, idPath("/api/tickets/", id, "/status"), adminToken, map[string]any{"status": "bogus"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body, _ = s.do(t, fiber.MethodPut, idPath("/api/tickets/", id, "/status"), adminToken, map[string]any{"status": "resolved"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "resolved", body["status"])

	status, _, raw = s.do(t, fiber.MethodGet, "/api/tickets", bobToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))

	status, _, raw = s.do(t, fiber.MethodGet, "/api/tickets?status=resolved", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list, 1)

	status, _, _ = s.do(t, fiber.MethodGet, "/api/tickets/stats", annToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body, _ = s.do(t, fiber.MethodGet, "/api/tickets/stats", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 1, body["byStatus"].(map[string]any)["resolved"])
	assert.EqualValues(t, 1, body["byPriority"].(map[string]any)["high"])

	status, _, _ = s.do(t, fiber.MethodDelete, idPath("/api/tickets/", id, ""), bobToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, body, _ = s.do(t, fiber.MethodDelete, idPath("/api/tickets/", id, ""), annToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Ticket deleted successfully", body["message"])
	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/tickets/", id, ""), annToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestCommentRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.seedUser(t, "root", domain.RoleAdmin)
	_, annToken := s.seedUser(t, "ann", domain.RoleUser)
	_, bobToken := s.seedUser(t, "bob", domain.RoleUser)

	_, ticket, _ := s.do(t, fiber.MethodPost, "/api/tickets", annToken, map[string]any{
		"title": "VPN", "description": "d", "category": "network", "priority": "low",
	})
	id := ticket["id"]

	status, comment, raw := s.do(t, fiber.MethodPost, idPath("/api/tickets/", id, "/comments"), adminToken, map[string]any{"content": "on it"})
	require.Equal(t, fiber.StatusCreated, status, string(raw))
	assert.Equal(t, "root", comment["user"].(map[string]any)["name"])

	status, _, _ = s.do(t, fiber.MethodPost, idPath("/api/tickets/", id, "/comments"), annToken, map[string]any{"content": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _, _ = s.do(t, fiber.MethodPost, idPath("/api/tickets/", id, "/comments"), bobToken, map[string]any{"content": "hi"})
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _, _ = s.do(t, fiber.MethodPost, idPath("/api/tickets/", id, "/comments"), bobToken, map[string]any{"content": ""})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/tickets/", id, "/comments"), bobToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _, raw = s.do(t, fiber.MethodGet, idPath("/api/tickets/", id, "/comments"), annToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var comments []map[string]any
	require.NoError(t, json.Unmarshal(raw, &comments))
	require.Len(t, comments, 1)
	assert.Equal(t, "on it", comments[0]["content"])
}

func TestUserRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.seedUser(t, "root", domain.RoleAdmin)
	annID, annToken := s.seedUser(t, "ann", domain.RoleUser)
	bobID, _ := s.seedUser(t, "bob", domain.RoleUser)

	status, _, _ := s.do(t, fiber.MethodGet, "/api/users", annToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _, raw := s.do(t, fiber.MethodGet, "/api/users", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotContains(t, string(raw), "password")

	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/users/", bobID, ""), annToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/users/", annID, ""), annToken, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _, _ = s.do(t, fiber.MethodPut, idPath("/api/users/", annID, ""), annToken, map[string]any{"name": "Queen", "role": "admin"})
	assert.Equal(t, fiber.StatusForbidden, status)
	_, body, _ := s.do(t, fiber.MethodGet, idPath("/api/users/", annID, ""), annToken, nil)
	assert.Equal(t, "ann", body["name"])
	assert.Equal(t, "user", body["role"])

	for _, payload := range []map[string]any{
		{"role": "admin", "email": "not-an-email"},
		{"role": "admin", "name": ""},
		{"role": "superuser"},
		{"role": "user"},
	} {
		status, body, _ := s.do(t, fiber.MethodPut, idPath("/api/users/", annID, ""), annToken, payload)
		assert.Equal(t, fiber.StatusForbidden, status, payload)
		assert.Equal(t, "FORBIDDEN", body["code"], payload)
	}
	status, body, _ = s.do(t, fiber.MethodPut, idPath("/api/users/", annID, ""), annToken, map[string]any{"email": "not-an-email"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ARGUMENT", body["code"])

	status, _, _ = s.do(t, fiber.MethodPut, idPath("/api/users/", annID, ""), annToken, map[string]any{"email": "bob@example.com"})
	assert.Equal(t, fiber.StatusConflict, status)

	_, _, _ = s.do(t, fiber.MethodPost, "/api/tickets", annToken, map[string]any{
		"title": "t", "description": "d", "category": "c", "priority": "p",
	})
	status, body, _ = s.do(t, fiber.MethodDelete, idPath("/api/admin/users/", annID, ""), adminToken, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "cannot delete user with active tickets", body["error"])

	status, _, _ = s.do(t, fiber.MethodDelete, idPath("/api/users/", bobID, ""), annToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _, _ = s.do(t, fiber.MethodDelete, idPath("/api/users/", bobID, ""), adminToken, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _, _ = s.do(t, fiber.MethodGet, idPath("/api/users/", bobID, ""), adminToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	_, adminToken := s.seedUser(t, "root", domain.RoleAdmin)
	_, annToken := s.seedUser(t, "ann", domain.RoleUser)

	status, _, _ := s.do(t, fiber.MethodPost, "/api/admin/users", annToken,
		map[string]any{"name": "x", "email": "x@example.com", "password": "secret1"})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body, _ := s.do(t, fiber.MethodPost, "/api/admin/users", adminToken,
		map[string]any{"name": "Ops", "email": "ops@example.com", "password": "secret1", "role": "admin"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "admin", body["role"])
	opsID := body["id"]

	status, body, _ = s.do(t, fiber.MethodPut, idPath("/api/admin/users/", opsID, ""), adminToken, map[string]any{"role": "user"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "user", body["role"])

	status, body, _ = s.do(t, fiber.MethodGet, "/api/admin/users/stats", adminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 3, body["totalUsers"])
	assert.EqualValues(t, 1, body["byRole"].(map[string]any)["admin"])
	assert.NotNil(t, body["ticketsByUser"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Pinger{"postgres": stubPinger{}, "redis": stubPinger{}})
	status, body, _ := s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, _, _ = s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _, raw := s.do(t, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), "http_requests_total")

	down := newTestServer(t, map[string]handlers.Pinger{"postgres": stubPinger{err: errors.New("connection refused")}})
	status, body, _ = down.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "UNAVAILABLE", body["code"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	status, body, _ := s.do(t, fiber.MethodGet, "/nope", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
