// Package feed pushes refreshed availability views to subscribers whenever
// the availability store reports a change.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"automedic-booking/internal/apperr"
	"automedic-booking/internal/model"
	"automedic-booking/internal/scheduler"
)

type Viewer interface {
	GetAvailability(ctx context.Context, date string) (*model.AvailabilityView, error)
}

// Source emits the date of every committed store mutation. The channel
// closes when the underlying subscription is lost.
type Source interface {
	Changes(ctx context.Context) (<-chan string, error)
}

type Feed struct {
	viewer Viewer
	log    *zap.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func New(v Viewer, log *zap.Logger) *Feed {
	return &Feed{
		viewer: v,
		log:    log.With(zap.String("component", "feed")),
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription delivers views for a fixed set of dates until Close is
// called or the subscribe context ends. Views for one date are delivered
// in commit order; bursts of changes may collapse into one delivery.
type Subscription struct {
	feed   *Feed
	dates  map[string]struct{}
	ctx    context.Context
	cancel context.CancelFunc
	out    chan model.AvailabilityView

	mu    sync.Mutex
	dirty map[string]struct{}
	wake  chan struct{}
}

// Subscribe registers interest in dates. The current view of each date is
// delivered first.
func (f *Feed) Subscribe(ctx context.Context, dates ...string) (*Subscription, error) {
	if len(dates) == 0 {
		return nil, apperr.ErrNoDates
	}
	set := make(map[string]struct{}, len(dates))
	for _, raw := range dates {
		d, err := scheduler.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		set[d] = struct{}{}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		feed:   f,
		dates:  set,
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan model.AvailabilityView),
		dirty:  make(map[string]struct{}, len(set)),
		wake:   make(chan struct{}, 1),
	}
	for d := range set {
		s.dirty[d] = struct{}{}
	}
	s.signal()

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go s.pump()
	return s, nil
}

// Updates is closed after the subscription ends.
func (s *Subscription) Updates() <-chan model.AvailabilityView { return s.out }

// Close stops deliveries and releases the subscription. Safe to call twice.
func (s *Subscription) Close() { s.cancel() }

func (s *Subscription) Done() <-chan struct{} { return s.ctx.Done() }

// Notify marks date as changed for every subscription watching it.
func (f *Feed) Notify(date string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if _, ok := s.dates[date]; ok {
			s.markDirty(date)
		}
	}
}

// Len reports the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Run forwards store changes into the feed until ctx ends, listening again
// with a short backoff whenever the source drops.
func (f *Feed) Run(ctx context.Context, src Source) error {
	backoff := 100 * time.Millisecond
	for {
		ch, err := src.Changes(ctx)
		if err != nil {
			f.log.Error("listen for changes", zap.Error(err))
		} else {
			backoff = 100 * time.Millisecond
			f.drain(ctx, ch)
			if ctx.Err() == nil {
				f.log.Warn("change source closed, listening again")
				// changes may have been missed while disconnected
				f.notifyAll()
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (f *Feed) drain(ctx context.Context, ch <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case date, ok := <-ch:
			if !ok {
				return
			}
			f.Notify(date)
		}
	}
}

func (f *Feed) notifyAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		for d := range s.dates {
			s.markDirty(d)
		}
	}
}

func (f *Feed) remove(s *Subscription) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

func (s *Subscription) markDirty(date string) {
	s.mu.Lock()
	s.dirty[date] = struct{}{}
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) takeDirty() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirty))
	for d := range s.dirty {
		out = append(out, d)
	}
	clear(s.dirty)
	sort.Strings(out)
	return out
}

// retry bounds how soon and how rarely a failed recompute is attempted again.
const (
	retryMin = 50 * time.Millisecond
	retryMax = 2 * time.Second
)

// requeue marks date dirty again without waking the pump; the retry timer
// does that.
func (s *Subscription) requeue(date string) {
	s.mu.Lock()
	s.dirty[date] = struct{}{}
	s.mu.Unlock()
}

// pump is the only sender on s.out. Each view is computed after its dirty
// mark was taken, so a later delivery always reflects a later read. A date
// whose recompute fails stays dirty until a read succeeds.
func (s *Subscription) pump() {
	defer close(s.out)
	defer s.feed.remove(s)

	var retry <-chan time.Time
	backoff := retryMin
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-retry:
		}
		retry = nil

		failed := false
		for _, date := range s.takeDirty() {
			view, err := s.feed.viewer.GetAvailability(s.ctx, date)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.feed.log.Warn("recompute availability", zap.String("date", date), zap.Error(err))
				s.requeue(date)
				failed = true
				continue
			}
			select {
			case s.out <- *view:
			case <-s.ctx.Done():
				return
			}
		}

		if !failed {
			backoff = retryMin
			continue
		}
		retry = time.After(backoff)
		if backoff < retryMax {
			backoff = min(backoff*2, retryMax)
		}
	}
}
