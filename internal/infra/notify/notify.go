// Package notify delivers user-facing failure notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/prepfox/prepfox-ops/internal/core/domain"
)

// Notifier tells users about operations that could not be completed.
type Notifier interface {
	Notify(ctx context.Context, op *domain.FailedOperation, message string) error
	Close() error
}

// Config holds NATS notification settings.
type Config struct {
	URL     string `yaml:"url"     env:"URL"`
	Subject string `yaml:"subject" env:"SUBJECT"`
}

// Event is the payload published for a failed operation.
type Event struct {
	CorrelationID string    `json:"correlation_id"`
	UserID        string    `json:"user_id,omitempty"`
	Operation     string    `json:"operation"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func newEvent(op *domain.FailedOperation, message string) Event {
	return Event{
		CorrelationID: op.CorrelationID,
		UserID:        op.UserID,
		Operation:     op.Operation,
		Message:       message,
		OccurredAt:    op.CreatedAt,
	}
}

// NATSNotifier publishes events to a NATS subject.
type NATSNotifier struct {
	nc      *nats.Conn
	subject string
}

// NewNATSNotifier connects to NATS.
func NewNATSNotifier(cfg Config) (*NATSNotifier, error) {
	subject := cfg.Subject
	if subject == "" {
		subject = "prepfox.notifications.failures"
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("prepfox-ops"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSNotifier{nc: nc, subject: subject}, nil
}

// Notify publishes the event. Delivery is at most once.
func (n *NATSNotifier) Notify(ctx context.Context, op *domain.FailedOperation, message string) error {
	data, err := json.Marshal(newEvent(op, message))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATSNotifier) Close() error {
	if n.nc == nil || n.nc.IsClosed() {
		return nil
	}
	return n.nc.Drain()
}

// LogNotifier writes events to the logger when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, op *domain.FailedOperation, message string) error {
	n.log.InfoContext(ctx, "User notification",
		"correlation_id", op.CorrelationID,
		"user_id", op.UserID,
		"operation", op.Operation,
		"message", message,
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
