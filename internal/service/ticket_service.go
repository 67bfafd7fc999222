package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/supportdesk/ticket-api/internal/auth"
	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/repository"
	apperrors "github.com/supportdesk/ticket-api/pkg/util"
)

const commentPreviewLength = 140

// TicketService coordinates ticket and comment workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	statuses   map[domain.TicketStatus]struct{}
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	UserRepo    repository.UserRepository
	Dispatcher  events.Dispatcher
	Statuses    []domain.TicketStatus
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
}

// TicketListFilter narrows listings by exact match. Nil fields are ignored.
type TicketListFilter struct {
	Status   *string
	Category *string
	Priority *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	statuses := deps.Statuses
	if len(statuses) == 0 {
		statuses = domain.DefaultTicketStatuses
	}
	allowed := make(map[domain.TicketStatus]struct{}, len(statuses))
	for _, s := range statuses {
		allowed[s] = struct{}{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		statuses:   allowed,
		logger:     logger,
	}
}

// Create opens a ticket owned by the caller.
func (s *TicketService) Create(ctx context.Context, caller auth.Caller, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Priority:    strings.TrimSpace(input.Priority),
		Status:      domain.TicketStatusOpen,
		OwnerID:     caller.ID,
	}
	if missing := missingTicketFields(ticket); len(missing) > 0 {
		return nil, apperrors.NewInvalidArgument("missing required fields", map[string]any{"fields": missing})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	created, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.NewTicketEvent(events.EventTicketCreated, caller.ID, created, nil))
	return created, nil
}

// List returns tickets visible to the caller, newest first. Non-admins only see their own tickets.
func (s *TicketService) List(ctx context.Context, caller auth.Caller, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Status:   filter.Status,
		Category: filter.Category,
		Priority: filter.Priority,
	}
	if !caller.IsAdmin() {
		ownerID := caller.ID
		repoFilter.OwnerID = &ownerID
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Get returns a single ticket with its owner.
func (s *TicketService) Get(ctx context.Context, caller auth.Caller, id int64) (*domain.Ticket, error) {
	return s.loadAuthorized(ctx, caller, id, "view this ticket")
}

// UpdateStatus moves a ticket to a configured status and notifies the owner.
func (s *TicketService) UpdateStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*domain.Ticket, error) {
	ticket, err := s.loadAuthorized(ctx, caller, id, "update this ticket")
	if err != nil {
		return nil, err
	}
	next := domain.TicketStatus(strings.TrimSpace(status))
	if _, ok := s.statuses[next]; !ok {
		return nil, apperrors.NewInvalidArgument("invalid ticket status", map[string]any{"status": status, "allowed": s.allowedStatuses()})
	}

	if err := s.tickets.UpdateStatus(ctx, ticket.ID, next); err != nil {
		return nil, notFoundOr(err, "ticket")
	}
	updated, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, notFoundOr(err, "ticket")
	}
	s.publishEvent(ctx, events.NewTicketEvent(events.EventTicketStatusChanged, caller.ID, updated,
		events.TicketStatusChangedPayload{OldStatus: string(ticket.Status), NewStatus: string(next)}))
	return updated, nil
}

// Delete removes a ticket and its comments.
func (s *TicketService) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	ticket, err := s.loadAuthorized(ctx, caller, id, "delete this ticket")
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		return notFoundOr(err, "ticket")
	}
	return nil
}

// AddComment appends a comment authored by the caller and notifies the ticket owner.
func (s *TicketService) AddComment(ctx context.Context, caller auth.Caller, ticketID int64, content string) (*domain.Comment, error) {
	ticket, err := s.loadAuthorized(ctx, caller, ticketID, "comment on this ticket")
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewInvalidArgument("missing required fields", map[string]any{"fields": []string{"content"}})
	}

	comment := &domain.Comment{Content: content, TicketID: ticket.ID, AuthorID: caller.ID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if author, err := s.users.GetByID(ctx, caller.ID); err == nil {
		comment.Author = &domain.UserRef{ID: author.ID, Name: author.Name, Email: author.Email}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.NewTicketEvent(events.EventTicketCommentAdded, caller.ID, ticket,
		events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    caller.ID,
			BodyPreview: events.Preview(content, commentPreviewLength),
		}))
	return comment, nil
}

// ListComments returns a ticket's comments, newest first.
func (s *TicketService) ListComments(ctx context.Context, caller auth.Caller, ticketID int64) ([]domain.Comment, error) {
	ticket, err := s.loadAuthorized(ctx, caller, ticketID, "view this ticket")
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return comments, nil
}

// Statistics aggregates all tickets. Callers must restrict it to admins.
func (s *TicketService) Statistics(ctx context.Context) (*domain.TicketStats, error) {
	total, err := s.tickets.Count(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats := &domain.TicketStats{Total: total}
	for _, dim := range []struct {
		dim repository.TicketDimension
		dst *map[string]int64
	}{
		{repository.DimensionStatus, &stats.ByStatus},
		{repository.DimensionCategory, &stats.ByCategory},
		{repository.DimensionPriority, &stats.ByPriority},
	} {
		counts, err := s.tickets.CountBy(ctx, dim.dim)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		*dim.dst = counts
	}
	return stats, nil
}

// loadAuthorized fetches a ticket and applies the owner policy before anything is exposed.
func (s *TicketService) loadAuthorized(ctx context.Context, caller auth.Caller, id int64, action string) (*domain.Ticket, error) {
	if id <= 0 {
		return nil, apperrors.NewInvalidArgument("invalid ticket id", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "ticket")
	}
	if err := auth.AuthorizeOwner(caller, ticket.OwnerID, action); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("ticket notification failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.Ticket.ID),
			zap.Error(err))
	}
}

func (s *TicketService) allowedStatuses() []string {
	out := make([]string, 0, len(s.statuses))
	for st := range s.statuses {
		out = append(out, string(st))
	}
	sort.Strings(out)
	return out
}

func missingTicketFields(t *domain.Ticket) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"title", t.Title},
		{"description", t.Description},
		{"category", t.Category},
		{"priority", t.Priority},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// notFoundOr maps a missing row to a NotFound for resource and classifies everything else.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.MapError(err)
}
