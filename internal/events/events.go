// Package events publishes domain events (the notify-user sink and the
// order flow) to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

const (
	BookingCreated  = "booking.created"
	BookingCanceled = "booking.canceled"

	PaymentIntentCreated = "payment.intent.created"
	PaymentSucceeded     = "payment.succeeded"
	PaymentFailed        = "payment.failed"
)

type BookingEvent struct {
	AppointmentID string    `json:"appointment_id"`
	CustomerID    string    `json:"customer_id"`
	CustomerEmail string    `json:"customer_email"`
	CustomerName  string    `json:"customer_name"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type PaymentEvent struct {
	IntentID   string    `json:"intent_id"`
	OrderName  string    `json:"order_name"`
	CustomerID string    `json:"customer_id,omitempty"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}

type NATSPublisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

func NewNATSPublisher(url string, log *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("automedic-booking"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, log: log.With(zap.String("component", "events"))}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	n.log.Debug("publishing event", zap.String("subject", subject), zap.ByteString("data", payload))
	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	return n.conn.Drain()
}

// LogPublisher writes events to the log instead of a broker. Used when no
// NATS_URL is configured.
type LogPublisher struct {
	Log *zap.Logger
}

func (l LogPublisher) Publish(_ context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	l.Log.Info("event", zap.String("subject", subject), zap.ByteString("data", payload))
	return nil
}

func (LogPublisher) Close() error { return nil }
