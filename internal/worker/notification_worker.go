package worker

import (
	"context"

	"github.com/supportdesk/ticket-api/internal/events"
	"github.com/supportdesk/ticket-api/internal/service"
)

// EventForwarder relays events to an external bus.
type EventForwarder interface {
	Handle(ctx context.Context, event events.Event) error
}

// StartNotificationWorker registers the email handlers and, when forwarder is
// non-nil, relays every ticket event to it. Forwarding failures are counted
// on the nats channel.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, forwarder EventForwarder) {
	if dispatcher == nil || notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if forwarder == nil {
		return
	}
	for _, t := range events.AllTicketEvents() {
		dispatcher.Subscribe(t, func(ctx context.Context, event events.Event) error {
			if err := forwarder.Handle(ctx, event); err != nil {
				notificationService.RecordFailure(service.ChannelNats)
				return err
			}
			return nil
		})
	}
}
