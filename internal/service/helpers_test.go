package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/config"
	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/mail"
	"github.com/supportdesk/ticket-api/internal/repository/memory"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, msg := range m.sent {
		out = append(out, msg.Subject)
	}
	return out
}

type failureCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *failureCounter) RecordNotificationFailure(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts == nil {
		f.counts = map[string]int{}
	}
	f.counts[channel]++
}

type fixture struct {
	store         *memory.Store
	tickets       *TicketService
	users         *UserService
	auth          *AuthService
	notifications *NotificationService
	mailer        *recordingMailer
	failures      *failureCounter
	revocations   *memoryRevocations
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	dispatcher := events.NewInMemoryDispatcher()
	mailer := &recordingMailer{}
	failures := &failureCounter{}

	users := NewUserService(UserDependencies{UserRepo: store.Users(), TicketRepo: store.Tickets(), BcryptCost: 4})
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		UserRepo:    store.Users(),
		Dispatcher:  dispatcher,
		Statuses:    domain.DefaultTicketStatuses,
	})
	notifications := NewNotificationService(config.NotificationConfig{FrontendURL: "https://desk.example.com"},
		NotificationDependencies{Dispatcher: dispatcher, Mailer: mailer, UserRepo: store.Users(), Failures: failures})
	notifications.RegisterHandlers()

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 60}}
	revocations := newMemoryRevocations()
	authSvc := NewAuthService(cfg, AuthDependencies{UserRepo: store.Users(), Users: users, Revocations: revocations})

	return &fixture{
		store:         store,
		tickets:       tickets,
		users:         users,
		auth:          authSvc,
		notifications: notifications,
		mailer:        mailer,
		failures:      failures,
		revocations:   revocations,
	}
}

func (f *fixture) createUser(t *testing.T, name string, role domain.Role) auth.Caller {
	t.Helper()
	r := string(role)
	u, err := f.users.Register(context.Background(), UserCreateInput{
		Name: name, Email: name + "@example.com", Password: "password1", Role: &r,
	})
	require.NoError(t, err)
	return auth.Caller{ID: u.ID, Role: u.Role}
}

func (f *fixture) createTicket(t *testing.T, owner auth.Caller, title string) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Create(context.Background(), owner, TicketCreateInput{
		Title: title, Description: "details", Category: "billing", Priority: "high",
	})
	require.NoError(t, err)
	return ticket
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
	err     error
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: map[string]bool{}}
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.revoked[id] = true
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], m.err
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
