package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportdesk/ticket-api/internal/domain"
)

func TestDispatcher_PublishRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("smtp down")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketStatusChanged, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcher_NoHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketCommentAdded}))
}

func TestNewTicketEvent(t *testing.T) {
	ticket := &domain.Ticket{
		ID: 5, Title: "Printer", Category: "hardware", Priority: "high",
		Status: domain.TicketStatusOpen, OwnerID: 2,
		Owner: &domain.UserRef{ID: 2, Name: "Ann", Email: "ann@example.com"},
	}
	ev := NewTicketEvent(EventTicketCreated, 2, ticket, nil)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "ann@example.com", ev.Ticket.OwnerEmail)
	assert.Equal(t, "open", ev.Ticket.Status)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "héll...", Preview("héllo world", 4))
}

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestNatsPublisher_Handle(t *testing.T) {
	conn := &fakeConn{}
	p := &NatsPublisher{conn: conn, logger: zap.NewNop()}

	ev := Event{ID: "e1", Type: EventTicketStatusChanged, Ticket: TicketSnapshot{ID: 9},
		Payload: TicketStatusChangedPayload{OldStatus: "open", NewStatus: "closed"}}
	require.NoError(t, p.Handle(context.Background(), ev))
	assert.Equal(t, "tickets.ticket.status_changed", conn.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, "e1", decoded["id"])
	assert.Equal(t, "closed", decoded["payload"].(map[string]any)["new_status"])

	conn.err = errors.New("no responders")
	assert.Error(t, p.Handle(context.Background(), ev))

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}
