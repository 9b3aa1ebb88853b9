package feed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/feed"
	"automedic-booking/internal/model"
	"automedic-booking/internal/scheduler"
	"automedic-booking/internal/slots"
	"automedic-booking/internal/store"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }
func (nopPublisher) Close() error                               { return nil }

var alice = model.Identity{UserID: "u-alice", Name: "Alice"}

func setup(t *testing.T) (*feed.Feed, *scheduler.Scheduler, context.Context) {
	t.Helper()
	st := store.NewMemory()
	sched := scheduler.New(st, nopPublisher{}, zap.NewNop(), scheduler.Options{
		Day: slots.Day{OpenHour: 10, CloseHour: 20, Step: 30 * time.Minute},
		Now: func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
	})
	f := feed.New(sched, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.Run(ctx, st)
	// let Run register its listener before the test mutates the store
	waitFor(t, func() bool { return st.Listeners() > 0 })
	return f, sched, ctx
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func next(t *testing.T, sub *feed.Subscription) model.AvailabilityView {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		require.True(t, ok, "updates closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return model.AvailabilityView{}
}

func booked(v model.AvailabilityView) []string {
	var out []string
	for _, s := range v.Slots {
		if s.IsBooked {
			out = append(out, s.Time)
		}
	}
	return out
}

func TestSubscribeDeliversCurrentView(t *testing.T) {
	f, sched, ctx := setup(t)

	_, err := sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-12", Time: "10:00 AM"})
	require.NoError(t, err)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()

	v := next(t, sub)
	assert.Equal(t, "2026-03-12", v.Date)
	assert.Len(t, v.Slots, 20)
	assert.Equal(t, []string{"10:00 AM"}, booked(v))
}

func TestUpdateAfterBooking(t *testing.T) {
	f, sched, ctx := setup(t)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()

	assert.Empty(t, booked(next(t, sub)))

	_, err = sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-12", Time: "02:00 PM"})
	require.NoError(t, err)

	v := next(t, sub)
	assert.Equal(t, []string{"02:00 PM"}, booked(v))
}

func TestOtherDatesNotDelivered(t *testing.T) {
	f, sched, ctx := setup(t)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	_, err = sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-13", Time: "02:00 PM"})
	require.NoError(t, err)

	select {
	case v := <-sub.Updates():
		t.Fatalf("unexpected update for %s", v.Date)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCoalescedUpdatesEndAtLatestState(t *testing.T) {
	f, sched, ctx := setup(t)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	// book several slots without draining the subscription
	times := []string{"10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM", "12:00 PM"}
	for _, tm := range times {
		_, err := sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-12", Time: tm})
		require.NoError(t, err)
	}

	// each delivery has at least as many booked slots as the one before,
	// and the last one shows all of them
	prev := 0
	deadline := time.After(2 * time.Second)
	for prev < len(times) {
		select {
		case v := <-sub.Updates():
			n := len(booked(v))
			assert.GreaterOrEqual(t, n, prev)
			prev = n
		case <-deadline:
			t.Fatalf("saw %d booked slots, want %d", prev, len(times))
		}
	}
}

func TestCloseStopsDeliveries(t *testing.T) {
	f, _, ctx := setup(t)

	sub, err := f.Subscribe(ctx, "2026-03-12", "2026-03-13")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())

	sub.Close()
	sub.Close()

	// drain until closed
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-sub.Updates():
			if !ok {
				waitFor(t, func() bool { return f.Len() == 0 })
				return
			}
		case <-timeout:
			t.Fatal("updates not closed")
		}
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	f, _, ctx := setup(t)

	subCtx, cancel := context.WithCancel(ctx)
	sub, err := f.Subscribe(subCtx, "2026-03-12")
	require.NoError(t, err)
	next(t, sub)

	cancel()
	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("updates not closed")
	}
}

func TestSubscribeValidation(t *testing.T) {
	f, _, ctx := setup(t)

	_, err := f.Subscribe(ctx)
	require.ErrorIs(t, err, apperr.ErrNoDates)

	_, err = f.Subscribe(ctx, "2026-03-12", "not-a-date")
	require.ErrorIs(t, err, apperr.ErrInvalidDate)
	assert.Equal(t, 0, f.Len())
}

// flakySource closes its first channel immediately to exercise re-listening.
type flakySource struct {
	mu    sync.Mutex
	calls int
	ch    chan string
}

func (s *flakySource) Changes(ctx context.Context) (<-chan string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	switch s.calls {
	case 1:
		ch := make(chan string)
		close(ch)
		return ch, nil
	case 2:
		return nil, errors.New("connection refused")
	default:
		return s.ch, nil
	}
}

func (s *flakySource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type staticViewer struct{}

func (staticViewer) GetAvailability(_ context.Context, date string) (*model.AvailabilityView, error) {
	return &model.AvailabilityView{Date: date}, nil
}

func TestRunListensAgain(t *testing.T) {
	f := feed.New(staticViewer{}, zap.NewNop())
	src := &flakySource{ch: make(chan string, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	next(t, sub)

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, src) }()

	waitFor(t, func() bool { return src.count() >= 3 })
	src.ch <- "2026-03-12"

	v := next(t, sub)
	assert.Equal(t, "2026-03-12", v.Date)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

// flakyViewer fails reads on demand and otherwise delegates to inner.
type flakyViewer struct {
	inner feed.Viewer

	mu       sync.Mutex
	failNext int // fail this many upcoming reads
	every    int // when > 0, fail every n-th read
	calls    int
	failures int
}

func (v *flakyViewer) GetAvailability(ctx context.Context, date string) (*model.AvailabilityView, error) {
	v.mu.Lock()
	v.calls++
	fail := v.failNext > 0 || (v.every > 0 && v.calls%v.every == 0)
	if v.failNext > 0 {
		v.failNext--
	}
	if fail {
		v.failures++
	}
	v.mu.Unlock()

	if fail {
		return nil, apperr.Wrap(apperr.ErrStoreUnavailable, errors.New("connection reset by peer"))
	}
	return v.inner.GetAvailability(ctx, date)
}

func (v *flakyViewer) set(failNext, every int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNext, v.every = failNext, every
}

func (v *flakyViewer) failed() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failures
}

func setupFlaky(t *testing.T) (*feed.Feed, *scheduler.Scheduler, *flakyViewer, context.Context) {
	t.Helper()
	st := store.NewMemory()
	sched := scheduler.New(st, nopPublisher{}, zap.NewNop(), scheduler.Options{
		Day: slots.Day{OpenHour: 10, CloseHour: 20, Step: 30 * time.Minute},
		Now: func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) },
	})
	v := &flakyViewer{inner: sched}
	f := feed.New(v, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.Run(ctx, st)
	waitFor(t, func() bool { return st.Listeners() > 0 })
	return f, sched, v, ctx
}

func TestRecomputeRetriedAfterStoreError(t *testing.T) {
	f, sched, v, ctx := setupFlaky(t)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, booked(next(t, sub)))

	v.set(1, 0)
	_, err = sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-12", Time: "02:00 PM"})
	require.NoError(t, err)

	// no other mutation follows; the failed read alone must lead to a delivery
	got := next(t, sub)
	assert.Equal(t, []string{"02:00 PM"}, booked(got))
	assert.Equal(t, 1, v.failed())
}

func TestFirstViewRetriedAfterStoreError(t *testing.T) {
	f, _, v, ctx := setupFlaky(t)
	v.set(2, 0)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()

	got := next(t, sub)
	assert.Equal(t, "2026-03-12", got.Date)
	assert.Equal(t, 2, v.failed())
}

func TestViewsStayMonotoneWhileStoreFlaky(t *testing.T) {
	f, sched, v, ctx := setupFlaky(t)

	sub, err := f.Subscribe(ctx, "2026-03-12")
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	v.set(0, 2)
	times := []string{"10:00 AM", "10:30 AM", "11:00 AM", "11:30 AM", "12:00 PM"}
	for _, tm := range times {
		_, err := sched.BookSlot(ctx, alice, scheduler.BookingRequest{Date: "2026-03-12", Time: tm})
		require.NoError(t, err)
	}

	prev := 0
	deadline := time.After(3 * time.Second)
	for prev < len(times) {
		select {
		case got := <-sub.Updates():
			n := len(booked(got))
			assert.GreaterOrEqual(t, n, prev)
			prev = n
		case <-deadline:
			t.Fatalf("saw %d booked slots, want %d", prev, len(times))
		}
	}
	assert.Positive(t, v.failed())
}
