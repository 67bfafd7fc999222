package domain

import "time"

// TicketStatus is a lifecycle state. The accepted set is configured at startup.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// DefaultTicketStatuses is used when no status set is configured.
var DefaultTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          int64
	Title       string
	Description string
	Category    string
	Priority    string
	Status      TicketStatus
	OwnerID     int64
	Owner       *UserRef
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TicketStats aggregates ticket counts across the whole store.
type TicketStats struct {
	Total      int64
	ByStatus   map[string]int64
	ByCategory map[string]int64
	ByPriority map[string]int64
}
