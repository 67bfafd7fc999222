package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketStatusChanged EventType = "ticket.status_changed"
	EventTicketCommentAdded  EventType = "ticket.comment_added"
)

// TicketSnapshot is the ticket state subscribers need without going back to the store.
type TicketSnapshot struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	Priority   string `json:"priority"`
	Status     string `json:"status"`
	OwnerID    int64  `json:"owner_id"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	ActorID   int64          `json:"actor_id"`
	Ticket    TicketSnapshot `json:"ticket"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   interface{}    `json:"payload,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	AuthorID    int64  `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// NewTicketEvent stamps an event for the given ticket.
func NewTicketEvent(eventType EventType, actorID int64, ticket *domain.Ticket, payload interface{}) Event {
	snap := TicketSnapshot{
		ID:       ticket.ID,
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
		Status:   string(ticket.Status),
		OwnerID:  ticket.OwnerID,
	}
	if ticket.Owner != nil {
		snap.OwnerName = ticket.Owner.Name
		snap.OwnerEmail = ticket.Owner.Email
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Ticket:    snap,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Preview trims a body to at most n runes for event payloads.
func Preview(body string, n int) string {
	runes := []rune(body)
	if len(runes) <= n {
		return body
	}
	return string(runes[:n]) + "..."
}
