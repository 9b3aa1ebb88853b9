// Package scheduler books single-day appointment slots for one service
// provider. The store's (date, time) uniqueness is the only synchronization
// between concurrent bookings; the scheduler never locks slots itself.
package scheduler

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/events"
	"automedic-booking/internal/model"
	"automedic-booking/internal/slots"
	"automedic-booking/internal/store"
)

const maxNoteLen = 500

// optional contact number: digits with the usual separators
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,18}[0-9]$`)

// AvailabilityStore is the durable record of booked slots.
type AvailabilityStore interface {
	BookedTimes(ctx context.Context, date string) ([]string, error)
	InsertAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	AppointmentsByCustomer(ctx context.Context, customerID string) ([]model.Appointment, error)
}

type Options struct {
	Day      slots.Day
	Location *time.Location
	// Timeout bounds every store call.
	Timeout time.Duration
	Now     func() time.Time
}

type Scheduler struct {
	store   AvailabilityStore
	pub     events.Publisher
	log     *zap.Logger
	day     slots.Day
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

func New(st AvailabilityStore, pub events.Publisher, log *zap.Logger, opts Options) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Day == (slots.Day{}) {
		opts.Day = slots.Default
	}
	return &Scheduler{
		store:   st,
		pub:     pub,
		log:     log.With(zap.String("component", "scheduler")),
		day:     opts.Day,
		loc:     opts.Location,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
}

func (s *Scheduler) Day() slots.Day { return s.day }

// ParseDate validates an ISO calendar date and returns it normalized.
func ParseDate(raw string) (string, error) {
	d, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return "", apperr.ErrInvalidDate
	}
	return d.Format(model.DateLayout), nil
}

func (s *Scheduler) today() string {
	return s.now().In(s.loc).Format(model.DateLayout)
}

// GetAvailability merges the slot table with the booked set for date.
// Either the full view is returned or an error, never a partial view.
func (s *Scheduler) GetAvailability(ctx context.Context, date string) (*model.AvailabilityView, error) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "GetAvailability")
	defer span.End()

	date, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("date", date))

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	booked, err := s.store.BookedTimes(cctx, date)
	if err != nil {
		s.log.Error("booked times", zap.String("date", date), zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}

	taken := make(map[string]bool, len(booked))
	for _, t := range booked {
		taken[t] = true
	}

	view := &model.AvailabilityView{Date: date, Slots: s.day.Table()}
	for i := range view.Slots {
		view.Slots[i].IsBooked = taken[view.Slots[i].Time]
	}
	return view, nil
}

type BookingRequest struct {
	Date  string
	Time  string
	Note  string
	Phone string
}

// BookSlot commits an appointment for who at (date, time). The store's
// uniqueness check at commit decides races: first committer wins, the
// other caller gets ErrSlotAlreadyBooked.
func (s *Scheduler) BookSlot(ctx context.Context, who model.Identity, req BookingRequest) (*model.Appointment, error) {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "BookSlot")
	defer span.End()

	if who.IsZero() {
		return nil, apperr.ErrNotAuthenticated
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if date < s.today() {
		return nil, apperr.ErrDateInPast
	}
	if !s.day.Valid(req.Time) {
		return nil, apperr.ErrInvalidTime
	}
	if utf8.RuneCountInString(req.Note) > maxNoteLen {
		return nil, apperr.ErrNoteTooLong
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if req.Phone != "" && !phoneRe.MatchString(req.Phone) {
		return nil, apperr.ErrInvalidPhone
	}
	span.SetAttributes(attribute.String("date", date), attribute.String("time", req.Time))

	apt := &model.Appointment{
		ID:            uuid.New().String(),
		CustomerID:    who.UserID,
		CustomerName:  who.Name,
		CustomerEmail: who.Email,
		Phone:         req.Phone,
		Date:          date,
		Time:          req.Time,
		Note:          req.Note,
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.InsertAppointment(cctx, apt); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			s.log.Info("slot conflict", zap.String("date", date), zap.String("time", req.Time))
			return nil, apperr.ErrSlotAlreadyBooked
		}
		s.log.Error("insert appointment", zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", apt.ID),
		zap.String("date", date),
		zap.String("time", req.Time),
	)
	s.publish(ctx, events.BookingCreated, apt)
	return apt, nil
}

// CancelAppointment removes the appointment id if who owns it.
func (s *Scheduler) CancelAppointment(ctx context.Context, who model.Identity, id string) error {
	ctx, span := otel.Tracer("scheduler").Start(ctx, "CancelAppointment")
	defer span.End()

	if who.IsZero() {
		return apperr.ErrNotAuthenticated
	}
	if id == "" {
		return apperr.ErrNotFound
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	apt, err := s.store.GetAppointment(cctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrNotFound
	}
	if err != nil {
		s.log.Error("get appointment", zap.String("appointment_id", id), zap.Error(err))
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}
	if apt.CustomerID != who.UserID {
		return apperr.ErrNotAuthorized
	}

	if err := s.store.DeleteAppointment(cctx, id); err != nil {
		// a concurrent cancel got there first
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrNotFound
		}
		s.log.Error("delete appointment", zap.String("appointment_id", id), zap.Error(err))
		return apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}

	s.log.Info("appointment cancelled", zap.String("appointment_id", id))
	s.publish(ctx, events.BookingCanceled, apt)
	return nil
}

// ListAppointments returns who's appointments by date, then slot order.
func (s *Scheduler) ListAppointments(ctx context.Context, who model.Identity) ([]model.Appointment, error) {
	if who.IsZero() {
		return nil, apperr.ErrNotAuthenticated
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	apts, err := s.store.AppointmentsByCustomer(cctx, who.UserID)
	if err != nil {
		s.log.Error("list appointments", zap.Error(err))
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, err)
	}

	sort.SliceStable(apts, func(i, j int) bool {
		if apts[i].Date != apts[j].Date {
			return apts[i].Date < apts[j].Date
		}
		return s.day.Index(apts[i].Time) < s.day.Index(apts[j].Time)
	})
	return apts, nil
}

func (s *Scheduler) publish(ctx context.Context, subject string, a *model.Appointment) {
	ev := events.BookingEvent{
		AppointmentID: a.ID,
		CustomerID:    a.CustomerID,
		CustomerEmail: a.CustomerEmail,
		CustomerName:  a.CustomerName,
		Date:          a.Date,
		Time:          a.Time,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.pub.Publish(ctx, subject, ev); err != nil {
		s.log.Warn("publish booking event", zap.String("subject", subject), zap.Error(err))
	}
}
