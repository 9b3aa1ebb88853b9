// Package orders records the order behind each succeeded payment intent,
// and cash on delivery orders that have no intent.
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/model"
)

// payment options shown on the order list
const (
	OptionStripe = "stripe"
	OptionCash   = "cash"
)

type Store interface {
	InsertOrder(ctx context.Context, o *model.Order) (bool, error)
	OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error)
}

type Reconciler struct {
	store    Store
	log      *zap.Logger
	timeout  time.Duration
	currency string
}

func New(st Store, log *zap.Logger, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Reconciler{store: st, log: log.With(zap.String("component", "orders")), timeout: timeout, currency: "usd"}
}

// WithCurrency sets the currency recorded on cash orders.
func (r *Reconciler) WithCurrency(c string) *Reconciler {
	if c != "" {
		r.currency = strings.ToLower(c)
	}
	return r
}

// FinalizeOrder stores the order for pi. Repeated calls for the same intent
// leave exactly one order.
func (r *Reconciler) FinalizeOrder(ctx context.Context, pi *model.PaymentIntent) error {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	o := &model.Order{
		ID:               uuid.NewString(),
		IntentID:         pi.ID,
		OrderName:        pi.Metadata.OrderName,
		CustomerID:       pi.Metadata.CustomerID,
		AmountMinorUnits: pi.AmountMinorUnits,
		Currency:         pi.Currency,
		PaymentOption:    OptionStripe,
	}
	created, err := r.store.InsertOrder(cctx, o)
	if err != nil {
		return err
	}
	if created {
		r.log.Info("order finalized", zap.String("order_id", o.ID), zap.String("intent_id", pi.ID))
	}
	return nil
}

// PlaceCashOrder records a cash on delivery order for who. No payment
// intent is involved.
func (r *Reconciler) PlaceCashOrder(ctx context.Context, who model.Identity, name string, amountMinorUnits int64) (*model.Order, error) {
	if who.IsZero() {
		return nil, apperr.ErrNotAuthenticated
	}
	if amountMinorUnits <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.ErrInvalidMetadata
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	o := &model.Order{
		ID:               uuid.NewString(),
		OrderName:        name,
		CustomerID:       who.UserID,
		AmountMinorUnits: amountMinorUnits,
		Currency:         r.currency,
		PaymentOption:    OptionCash,
	}
	if _, err := r.store.InsertOrder(cctx, o); err != nil {
		r.log.Error("insert cash order", zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	r.log.Info("cash order placed", zap.String("order_id", o.ID), zap.String("customer_id", who.UserID))
	return o, nil
}

// ListOrders returns who's orders, newest first.
func (r *Reconciler) ListOrders(ctx context.Context, who model.Identity) ([]model.Order, error) {
	if who.IsZero() {
		return nil, apperr.ErrNotAuthenticated
	}
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.store.OrdersByCustomer(cctx, who.UserID)
	if err != nil {
		r.log.Error("list orders", zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	return out, nil
}
