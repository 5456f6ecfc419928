package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventType doubles as the routing key.
type EventType string

const (
	PaymentCompleted EventType = "payment.completed"
	PaymentFailed    EventType = "payment.failed"
	OrderConfirmed   EventType = "order.confirmed"
)

// PaymentEvent is published after a payment or order transition has been
// committed. Consumers must tolerate duplicates.
type PaymentEvent struct {
	Type          EventType       `json:"type"`
	PaymentID     string          `json:"payment_id"`
	OrderID       string          `json:"order_id"`
	ReferenceCode string          `json:"reference_code"`
	Method        string          `json:"method"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Reason        string          `json:"reason,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Publisher delivers payment events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev PaymentEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PaymentEvent) error { return nil }
func (NopPublisher) Close() error                                { return nil }

// NewPublisher connects to RabbitMQ, or returns a NopPublisher when url is
// empty.
func NewPublisher(url string, logger *zap.Logger) (Publisher, error) {
	if url == "" {
		logger.Info("AMQP_URL not set, payment events are disabled")
		return NopPublisher{}, nil
	}
	return NewRabbitMQPublisher(url, logger)
}
