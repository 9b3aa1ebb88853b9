package handler

import (
	"context"

	"automedic-booking/internal/api"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/scheduler"
)

func (h *Handler) GetAvailability(ctx context.Context, req *api.GetAvailabilityRequest) (*api.GetAvailabilityResponse, error) {
	view, err := h.sched.GetAvailability(ctx, req.Date)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.GetAvailabilityResponse{View: api.FromView(view)}, nil
}

func (h *Handler) BookSlot(ctx context.Context, req *api.BookSlotRequest) (*api.BookSlotResponse, error) {
	apt, err := h.sched.BookSlot(ctx, middleware.IdentityFrom(ctx), scheduler.BookingRequest{
		Date:  req.Date,
		Time:  req.Time,
		Note:  req.Note,
		Phone: req.Phone,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.BookSlotResponse{Appointment: api.FromAppointment(apt)}, nil
}

func (h *Handler) CancelAppointment(ctx context.Context, req *api.CancelAppointmentRequest) (*api.CancelAppointmentResponse, error) {
	if err := h.sched.CancelAppointment(ctx, middleware.IdentityFrom(ctx), req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &api.CancelAppointmentResponse{}, nil
}

func (h *Handler) ListAppointments(ctx context.Context, _ *api.ListAppointmentsRequest) (*api.ListAppointmentsResponse, error) {
	apts, err := h.sched.ListAppointments(ctx, middleware.IdentityFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]*api.Appointment, len(apts))
	for i := range apts {
		out[i] = api.FromAppointment(&apts[i])
	}
	return &api.ListAppointmentsResponse{Appointments: out}, nil
}

// WatchAvailability streams the current view of each requested date, then a
// fresh view after every change to it, until the client goes away.
func (h *Handler) WatchAvailability(req *api.WatchAvailabilityRequest, stream api.WatchAvailabilityServer) error {
	sub, err := h.feed.Subscribe(stream.Context(), req.Dates...)
	if err != nil {
		return toStatus(err)
	}
	defer sub.Close()

	for view := range sub.Updates() {
		if err := stream.Send(api.FromView(&view)); err != nil {
			return err
		}
	}
	return nil
}
