package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/supportdesk/ticket-api/internal/config"
	"github.com/supportdesk/ticket-api/internal/domain"
	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/mail"
	"github.com/supportdesk/ticket-api/internal/repository"
)

// Notification channels used as metric labels.
const (
	ChannelOwnerEmail = "owner_email"
	ChannelAdminEmail = "admin_email"
	ChannelNats       = "nats"
)

// FailureRecorder counts failed notification deliveries per channel.
type FailureRecorder interface {
	RecordNotificationFailure(channel string)
}

// NotificationService emails ticket owners and admins about ticket events.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     mail.Mailer
	users      repository.UserRepository
	failures   FailureRecorder
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Mailer     mail.Mailer
	UserRepo   repository.UserRepository
	Failures   FailureRecorder
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(cfg config.NotificationConfig, deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		mailer:     deps.Mailer,
		users:      deps.UserRepo,
		failures:   deps.Failures,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreatedAdmins)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketCommentAdded, n.handleTicketCommentAdded)
}

// RecordFailure counts a failed delivery on channel.
func (n *NotificationService) RecordFailure(channel string) {
	if n.failures != nil {
		n.failures.RecordNotificationFailure(channel)
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	return n.sendToOwner(ctx, event, mail.TicketCreated)
}

func (n *NotificationService) handleTicketCreatedAdmins(ctx context.Context, event events.Event) error {
	admins, err := n.users.ListEmailsByRole(ctx, domain.RoleAdmin)
	if err != nil {
		n.RecordFailure(ChannelAdminEmail)
		return fmt.Errorf("load admin emails: %w", err)
	}
	if len(admins) == 0 {
		return nil
	}
	view := n.view(event)
	view.Link = n.adminTicketLink(event.Ticket.ID)
	msg, err := mail.AdminTicketCreated(admins, view)
	if err != nil {
		n.RecordFailure(ChannelAdminEmail)
		return err
	}
	return n.send(ctx, ChannelAdminEmail, event, msg)
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	return n.sendToOwner(ctx, event, mail.TicketStatusChanged)
}

func (n *NotificationService) handleTicketCommentAdded(ctx context.Context, event events.Event) error {
	return n.sendToOwner(ctx, event, mail.TicketCommented)
}

func (n *NotificationService) sendToOwner(ctx context.Context, event events.Event, build func(string, mail.TicketView) (mail.Message, error)) error {
	if event.Ticket.OwnerEmail == "" {
		n.RecordFailure(ChannelOwnerEmail)
		return fmt.Errorf("ticket %d: owner email unknown", event.Ticket.ID)
	}
	msg, err := build(event.Ticket.OwnerEmail, n.view(event))
	if err != nil {
		n.RecordFailure(ChannelOwnerEmail)
		return err
	}
	return n.send(ctx, ChannelOwnerEmail, event, msg)
}

func (n *NotificationService) send(ctx context.Context, channel string, event events.Event, msg mail.Message) error {
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.RecordFailure(channel)
		return fmt.Errorf("%s: %w", channel, err)
	}
	n.logger.Debug("notification sent",
		zap.String("channel", channel),
		zap.String("event_type", string(event.Type)),
		zap.Int64("ticket_id", event.Ticket.ID))
	return nil
}

func (n *NotificationService) view(event events.Event) mail.TicketView {
	return mail.TicketView{
		ID:       event.Ticket.ID,
		Title:    event.Ticket.Title,
		Category: event.Ticket.Category,
		Priority: event.Ticket.Priority,
		Status:   event.Ticket.Status,
		Link:     n.ticketLink(event.Ticket.ID),
	}
}

func (n *NotificationService) ticketLink(id int64) string {
	return fmt.Sprintf("%s/tickets/%d", n.cfg.FrontendURL, id)
}

func (n *NotificationService) adminTicketLink(id int64) string {
	return fmt.Sprintf("%s/admin/tickets/%d", n.cfg.FrontendURL, id)
}
