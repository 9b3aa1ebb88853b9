// Package api defines the booking.v1.BookingService wire contract: messages,
// the service descriptor and a client. Messages use the protobuf wire format
// laid out in proto/booking/v1/booking.proto, so stock gRPC and gRPC-Web
// clients generated from that file interoperate.
package api

import (
	"time"

	"automedic-booking/internal/model"
)

type TimeSlot struct {
	Time     string
	IsBooked bool
}

type AvailabilityView struct {
	Date  string
	Slots []TimeSlot
}

type Appointment struct {
	ID            string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	Date          string
	Time          string
	Note          string
	CreatedAt     time.Time
	Phone         string
}

type PaymentIntent struct {
	ID               string
	AmountMinorUnits int64
	Currency         string
	OrderName        string
	State            string
	ClientSecret     string
}

type Order struct {
	ID               string
	IntentID         string
	OrderName        string
	AmountMinorUnits int64
	Currency         string
	PaymentOption    string
	CreatedAt        time.Time
}

type GetAvailabilityRequest struct {
	Date string
}

type GetAvailabilityResponse struct {
	View *AvailabilityView
}

type BookSlotRequest struct {
	Date  string
	Time  string
	Note  string
	Phone string
}

type BookSlotResponse struct {
	Appointment *Appointment
}

type CancelAppointmentRequest struct {
	ID string
}

type CancelAppointmentResponse struct{}

type ListAppointmentsRequest struct{}

type ListAppointmentsResponse struct {
	Appointments []*Appointment
}

type WatchAvailabilityRequest struct {
	Dates []string
}

type CreatePaymentIntentRequest struct {
	OrderName        string
	AmountMinorUnits int64
}

type CreatePaymentIntentResponse struct {
	Intent *PaymentIntent
}

type PlaceCashOrderRequest struct {
	OrderName        string
	AmountMinorUnits int64
}

type PlaceCashOrderResponse struct {
	Order *Order
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []*Order
}

func FromView(v *model.AvailabilityView) *AvailabilityView {
	out := &AvailabilityView{Date: v.Date, Slots: make([]TimeSlot, len(v.Slots))}
	for i, s := range v.Slots {
		out.Slots[i] = TimeSlot{Time: s.Time, IsBooked: s.IsBooked}
	}
	return out
}

func FromAppointment(a *model.Appointment) *Appointment {
	return &Appointment{
		ID:            a.ID,
		CustomerID:    a.CustomerID,
		CustomerName:  a.CustomerName,
		CustomerEmail: a.CustomerEmail,
		Date:          a.Date,
		Time:          a.Time,
		Note:          a.Note,
		CreatedAt:     a.CreatedAt,
		Phone:         a.Phone,
	}
}

func FromIntent(pi *model.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:               pi.ID,
		AmountMinorUnits: pi.AmountMinorUnits,
		Currency:         pi.Currency,
		OrderName:        pi.Metadata.OrderName,
		State:            string(pi.State),
		ClientSecret:     pi.ClientSecret,
	}
}

func FromOrder(o *model.Order) *Order {
	return &Order{
		ID:               o.ID,
		IntentID:         o.IntentID,
		OrderName:        o.OrderName,
		AmountMinorUnits: o.AmountMinorUnits,
		Currency:         o.Currency,
		PaymentOption:    o.PaymentOption,
		CreatedAt:        o.CreatedAt,
	}
}
