package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"automedic-booking/internal/model"
)

// Memory is an in-process store with the same contract as Store. Used for
// tests and for running without a database (DATABASE_URL=memory://).
type Memory struct {
	mu        sync.Mutex
	appts     map[string]model.Appointment
	slots     map[slotKey]string // (date, time) -> appointment id
	intents   map[string]model.PaymentIntent
	events    map[string]time.Time
	orders    map[string]model.Order // keyed by order id
	byIntent  map[string]string      // intent id -> order id
	listeners map[*listener]struct{}
}

type slotKey struct{ date, time string }

type listener struct {
	ch   chan string
	done <-chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		appts:     make(map[string]model.Appointment),
		slots:     make(map[slotKey]string),
		intents:   make(map[string]model.PaymentIntent),
		events:    make(map[string]time.Time),
		orders:    make(map[string]model.Order),
		byIntent:  make(map[string]string),
		listeners: make(map[*listener]struct{}),
	}
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) BookedTimes(ctx context.Context, date string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.slots {
		if k.date == date {
			out = append(out, k.time)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) InsertAppointment(ctx context.Context, a *model.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	k := slotKey{a.Date, a.Time}
	if _, taken := m.slots[k]; taken {
		m.mu.Unlock()
		return ErrSlotTaken
	}
	a.CreatedAt = time.Now()
	m.slots[k] = a.ID
	m.appts[a.ID] = *a
	m.mu.Unlock()

	m.notify(a.Date)
	return nil
}

func (m *Memory) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) DeleteAppointment(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	a, ok := m.appts[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.appts, id)
	delete(m.slots, slotKey{a.Date, a.Time})
	m.mu.Unlock()

	m.notify(a.Date)
	return nil
}

func (m *Memory) AppointmentsByCustomer(ctx context.Context, customerID string) ([]model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Appointment
	for _, a := range m.appts {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Changes(ctx context.Context) (<-chan string, error) {
	l := &listener{ch: make(chan string, 64), done: ctx.Done()}
	m.mu.Lock()
	m.listeners[l] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.listeners, l)
		m.mu.Unlock()
	}()
	return l.ch, nil
}

// Listeners reports how many Changes subscriptions are attached.
func (m *Memory) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// notify runs outside m.mu; a slow listener only delays the mutating caller.
func (m *Memory) notify(date string) {
	m.mu.Lock()
	ls := make([]*listener, 0, len(m.listeners))
	for l := range m.listeners {
		ls = append(ls, l)
	}
	m.mu.Unlock()

	for _, l := range ls {
		select {
		case l.ch <- date:
		case <-l.done:
		}
	}
}

func (m *Memory) CreateIntent(ctx context.Context, pi *model.PaymentIntent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	pi.CreatedAt, pi.UpdatedAt = now, now
	stored := *pi
	stored.ClientSecret = ""
	m.intents[pi.ID] = stored
	return nil
}

func (m *Memory) GetIntent(ctx context.Context, id string) (*model.PaymentIntent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pi, nil
}

func (m *Memory) TransitionIntent(ctx context.Context, id string, to model.IntentState) (*model.PaymentIntent, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pi, ok := m.intents[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if pi.State != model.IntentCreated {
		return &pi, false, nil
	}
	pi.State = to
	pi.UpdatedAt = time.Now()
	m.intents[id] = pi
	return &pi, true, nil
}

func (m *Memory) EventSeen(ctx context.Context, eventID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventID]
	return ok, nil
}

func (m *Memory) RememberEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		m.events[eventID] = time.Now()
	}
	return nil
}

func (m *Memory) PurgeEvents(ctx context.Context, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	cutoff := time.Now().Add(-ttl)
	for id, at := range m.events {
		if at.Before(cutoff) {
			delete(m.events, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) InsertOrder(ctx context.Context, o *model.Order) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.IntentID != "" {
		if _, ok := m.byIntent[o.IntentID]; ok {
			return false, nil
		}
		m.byIntent[o.IntentID] = o.ID
	}
	o.CreatedAt = time.Now()
	m.orders[o.ID] = *o
	return true, nil
}

func (m *Memory) OrdersByCustomer(ctx context.Context, customerID string) ([]model.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
