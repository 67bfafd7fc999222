package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "tickets."

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NatsPublisher forwards ticket events to NATS as JSON.
type NatsPublisher struct {
	conn   natsConn
	logger *zap.Logger
}

// NewNatsPublisher connects to the NATS server at url.
func NewNatsPublisher(url, clientName string, logger *zap.Logger) (*NatsPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NatsPublisher{conn: nc, logger: logger}, nil
}

// Subject returns the NATS subject an event type is published on.
func Subject(eventType EventType) string {
	return subjectPrefix + string(eventType)
}

// Handle is an EventHandler publishing the event.
func (p *NatsPublisher) Handle(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	subject := Subject(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.String("event_id", event.ID))
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}
