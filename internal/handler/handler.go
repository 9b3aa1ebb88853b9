// Package handler implements booking.v1.BookingService on top of the
// scheduler, the change feed, the payment coordinator and the order
// reconciler.
package handler

import (
	"context"

	"automedic-booking/internal/feed"
	"automedic-booking/internal/model"
	"automedic-booking/internal/scheduler"
)

type Scheduler interface {
	GetAvailability(ctx context.Context, date string) (*model.AvailabilityView, error)
	BookSlot(ctx context.Context, who model.Identity, req scheduler.BookingRequest) (*model.Appointment, error)
	CancelAppointment(ctx context.Context, who model.Identity, id string) error
	ListAppointments(ctx context.Context, who model.Identity) ([]model.Appointment, error)
}

type Feed interface {
	Subscribe(ctx context.Context, dates ...string) (*feed.Subscription, error)
}

type Payments interface {
	CreateIntent(ctx context.Context, amountMinorUnits int64, md model.IntentMetadata) (*model.PaymentIntent, error)
}

type Orders interface {
	PlaceCashOrder(ctx context.Context, who model.Identity, name string, amountMinorUnits int64) (*model.Order, error)
	ListOrders(ctx context.Context, who model.Identity) ([]model.Order, error)
}

type Handler struct {
	sched  Scheduler
	feed   Feed
	pay    Payments
	orders Orders
}

func New(s Scheduler, f Feed, p Payments, o Orders) *Handler {
	return &Handler{sched: s, feed: f, pay: p, orders: o}
}
