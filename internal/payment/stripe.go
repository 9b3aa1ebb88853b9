package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/model"
)

// Stripe is the Provider and Verifier backed by the Stripe API.
type Stripe struct {
	intents       *paymentintent.Client
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		intents:       &paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) CreateIntent(ctx context.Context, req ProviderRequest) (*ProviderIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinorUnits),
		Currency:           stripe.String(req.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("order_name", req.Metadata.OrderName)
	if req.Metadata.CustomerID != "" {
		params.AddMetadata("customer_id", req.Metadata.CustomerID)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, err
	}
	return &ProviderIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// Verify checks the Stripe-Signature header, then decodes the event. The
// intent id is filled for payment_intent.* events. A payload that is signed
// but cannot be decoded returns apperr.ErrInvalidPayload.
func (s *Stripe) Verify(payload []byte, header string) (*model.WebhookEvent, error) {
	if err := webhook.ValidatePayload(payload, header, s.webhookSecret); err != nil {
		return nil, err
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidPayload, fmt.Errorf("decode event: %w", err))
	}
	ev := &model.WebhookEvent{ID: event.ID, Type: model.EventType(event.Type)}
	if !strings.HasPrefix(string(event.Type), "payment_intent.") {
		return ev, nil
	}
	if event.Data == nil {
		return nil, apperr.Wrap(apperr.ErrInvalidPayload, fmt.Errorf("event %s has no data", event.ID))
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, apperr.Wrap(apperr.ErrInvalidPayload, fmt.Errorf("decode payment intent: %w", err))
	}
	if pi.ID == "" {
		return nil, apperr.Wrap(apperr.ErrInvalidPayload, fmt.Errorf("event %s has no payment intent id", event.ID))
	}
	ev.IntentID = pi.ID
	return ev, nil
}
