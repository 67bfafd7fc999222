package dto

import (
	"time"

	"github.com/supportdesk/ticket-api/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Priority    string `json:"priority" validate:"required"`
}

// UpdateTicketStatusRequest payload.
type UpdateTicketStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// CreateCommentRequest payload. Content is checked by the service after the ticket policy.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// TicketListQuery captures exact-match query filters.
type TicketListQuery struct {
	Status   string `query:"status"`
	Category string `query:"category"`
	Priority string `query:"priority"`
}

// TicketResponse is a ticket with its owner's public profile.
type TicketResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	UserID      int64     `json:"userId"`
	User        *UserRef  `json:"user,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CommentResponse is a comment with its author's public profile.
type CommentResponse struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	TicketID  int64     `json:"ticketId"`
	UserID    int64     `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TicketStatsResponse aggregates all tickets.
type TicketStatsResponse struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByCategory map[string]int64 `json:"byCategory"`
	ByPriority map[string]int64 `json:"byPriority"`
}

// NewTicketResponse converts a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Priority:    t.Priority,
		Status:      string(t.Status),
		UserID:      t.OwnerID,
		User:        newUserRef(t.Owner),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketResponses converts a list, never returning nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponse converts a comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		Content:   c.Content,
		TicketID:  c.TicketID,
		UserID:    c.AuthorID,
		User:      newUserRef(c.Author),
		CreatedAt: c.CreatedAt,
	}
}

// NewCommentResponses converts a list, never returning nil.
func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for i := range comments {
		out = append(out, NewCommentResponse(&comments[i]))
	}
	return out
}

// NewTicketStatsResponse converts aggregate counts.
func NewTicketStatsResponse(s *domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		Total:      s.Total,
		ByStatus:   nonNil(s.ByStatus),
		ByCategory: nonNil(s.ByCategory),
		ByPriority: nonNil(s.ByPriority),
	}
}

func nonNil(m map[string]int64) map[string]int64 {
	if m == nil {
		return map[string]int64{}
	}
	return m
}
