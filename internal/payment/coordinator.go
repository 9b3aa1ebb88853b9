// Package payment creates payment intents with the provider and applies the
// provider's webhook events to them. Every intent moves at most once, from
// created to succeeded or failed.
package payment

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/events"
	"automedic-booking/internal/model"
	"automedic-booking/internal/store"
)

// Provider creates intents at the payment provider.
type Provider interface {
	CreateIntent(ctx context.Context, req ProviderRequest) (*ProviderIntent, error)
}

type ProviderRequest struct {
	AmountMinorUnits int64
	Currency         string
	Metadata         model.IntentMetadata
	IdempotencyKey   string
}

type ProviderIntent struct {
	ID           string
	ClientSecret string
}

// Verifier authenticates a raw webhook payload against its signature header.
type Verifier interface {
	Verify(payload []byte, header string) (*model.WebhookEvent, error)
}

type IntentStore interface {
	CreateIntent(ctx context.Context, pi *model.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*model.PaymentIntent, error)
	TransitionIntent(ctx context.Context, id string, to model.IntentState) (*model.PaymentIntent, bool, error)
}

// Deduper remembers processed webhook event ids.
type Deduper interface {
	EventSeen(ctx context.Context, eventID string) (bool, error)
	RememberEvent(ctx context.Context, eventID string) error
}

// OrderReconciler finalizes the order behind a succeeded intent. It must be
// idempotent per intent.
type OrderReconciler interface {
	FinalizeOrder(ctx context.Context, pi *model.PaymentIntent) error
}

type Options struct {
	Currency string
	Timeout  time.Duration
	Now      func() time.Time
}

type Coordinator struct {
	provider Provider
	verifier Verifier
	store    IntentStore
	dedup    Deduper
	orders   OrderReconciler
	pub      events.Publisher
	log      *zap.Logger

	currency string
	timeout  time.Duration
	now      func() time.Time
}

func New(p Provider, v Verifier, st IntentStore, d Deduper, o OrderReconciler, pub events.Publisher, log *zap.Logger, opts Options) *Coordinator {
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		provider: p,
		verifier: v,
		store:    st,
		dedup:    d,
		orders:   o,
		pub:      pub,
		log:      log.With(zap.String("component", "payment")),
		currency: strings.ToLower(opts.Currency),
		timeout:  opts.Timeout,
		now:      opts.Now,
	}
}

// CreateIntent opens an intent for amountMinorUnits in the configured
// currency. The returned intent carries the client secret; the stored copy
// does not.
func (c *Coordinator) CreateIntent(ctx context.Context, amountMinorUnits int64, md model.IntentMetadata) (*model.PaymentIntent, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "CreateIntent")
	defer span.End()

	if amountMinorUnits <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	md.OrderName = strings.TrimSpace(md.OrderName)
	if md.OrderName == "" {
		return nil, apperr.ErrInvalidMetadata
	}
	span.SetAttributes(attribute.Int64("amount", amountMinorUnits))

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	got, err := c.provider.CreateIntent(cctx, ProviderRequest{
		AmountMinorUnits: amountMinorUnits,
		Currency:         c.currency,
		Metadata:         md,
		IdempotencyKey:   uuid.NewString(),
	})
	if err != nil {
		c.log.Error("provider create intent", zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrProvider, err)
	}

	pi := &model.PaymentIntent{
		ID:               got.ID,
		AmountMinorUnits: amountMinorUnits,
		Currency:         c.currency,
		Metadata:         md,
		State:            model.IntentCreated,
	}
	if err := c.store.CreateIntent(cctx, pi); err != nil {
		c.log.Error("persist intent", zap.String("intent_id", pi.ID), zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	pi.ClientSecret = got.ClientSecret

	c.log.Info("payment intent created",
		zap.String("intent_id", pi.ID),
		zap.Int64("amount", amountMinorUnits),
		zap.String("order_name", md.OrderName),
	)
	c.publish(ctx, events.PaymentIntentCreated, pi)
	return pi, nil
}

// HandleWebhookEvent verifies and applies one provider delivery. Duplicate,
// out-of-order and unknown events are acknowledged with a nil error. A
// non-nil infrastructure error asks the provider to deliver again.
func (c *Coordinator) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	ctx, span := otel.Tracer("payment").Start(ctx, "HandleWebhookEvent")
	defer span.End()

	ev, err := c.verifier.Verify(payload, signature)
	if errors.Is(err, apperr.ErrInvalidPayload) {
		c.log.Warn("webhook payload rejected", zap.Error(err))
		return err
	}
	if err != nil {
		c.log.Warn("webhook signature verification failed", zap.Error(err))
		return apperr.Wrap(apperr.ErrInvalidSignature, err)
	}
	span.SetAttributes(attribute.String("event_id", ev.ID), attribute.String("event_type", string(ev.Type)))

	log := c.log.With(zap.String("event_id", ev.ID), zap.String("event_type", string(ev.Type)))
	log.Info("processing webhook")

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	seen, err := c.dedup.EventSeen(cctx, ev.ID)
	if err != nil {
		log.Error("webhook dedup lookup", zap.Error(err))
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if seen {
		log.Info("skipping duplicate webhook")
		return nil
	}

	switch ev.Type {
	case model.EventIntentSucceeded:
		err = c.apply(cctx, log, ev.IntentID, model.IntentSucceeded)
	case model.EventIntentFailed:
		err = c.apply(cctx, log, ev.IntentID, model.IntentFailed)
	case model.EventIntentCreated:
		log.Info("payment intent created at provider", zap.String("intent_id", ev.IntentID))
	default:
		log.Info("unhandled webhook event type")
	}
	if err != nil {
		return err
	}

	if err := c.dedup.RememberEvent(cctx, ev.ID); err != nil {
		// reprocessing is harmless, the transition guard holds
		log.Warn("remember webhook event", zap.Error(err))
	}
	return nil
}

func (c *Coordinator) apply(ctx context.Context, log *zap.Logger, intentID string, to model.IntentState) error {
	log = log.With(zap.String("intent_id", intentID))

	pi, changed, err := c.store.TransitionIntent(ctx, intentID, to)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("webhook for unknown payment intent")
		return nil
	}
	if err != nil {
		log.Error("transition intent", zap.Error(err))
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}

	if !changed {
		log.Info("payment intent already terminal", zap.String("state", string(pi.State)))
	} else {
		log.Info("payment intent transitioned", zap.String("state", string(pi.State)))
	}

	// finalize on every succeeded delivery, so a failed finalize is retried
	if pi.State == model.IntentSucceeded && c.orders != nil {
		if err := c.orders.FinalizeOrder(ctx, pi); err != nil {
			log.Error("finalize order", zap.Error(err))
			return apperr.Wrap(apperr.ErrStoreUnavailable, err)
		}
	}

	if changed {
		subject := events.PaymentFailed
		if pi.State == model.IntentSucceeded {
			subject = events.PaymentSucceeded
		}
		c.publish(ctx, subject, pi)
	}
	return nil
}

// Intent returns the stored intent id.
func (c *Coordinator) Intent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	pi, err := c.store.GetIntent(cctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	return pi, nil
}

func (c *Coordinator) publish(ctx context.Context, subject string, pi *model.PaymentIntent) {
	ev := events.PaymentEvent{
		IntentID:   pi.ID,
		OrderName:  pi.Metadata.OrderName,
		CustomerID: pi.Metadata.CustomerID,
		Amount:     pi.AmountMinorUnits,
		Currency:   pi.Currency,
		State:      string(pi.State),
		OccurredAt: c.now().UTC(),
	}
	if err := c.pub.Publish(ctx, subject, ev); err != nil {
		c.log.Warn("publish payment event", zap.String("subject", subject), zap.Error(err))
	}
}
