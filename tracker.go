package phasez

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

// call states shared between a waiting caller and the call's goroutine.
const (
	callRunning int32 = iota
	callSettled
	callAbandoned // caller gave up at the budget
	callDetached  // caller's context ended first
)

// Tracker is the single choke point through which hook calls are started,
// timed and measured.
//
// Every call made through Wrap:
//   - Is started eagerly on its own goroutine, after its start time is taken
//   - Records exactly one Sample when it settles, even after a timeout
//   - Is raced against its budget; the caller never waits longer
//   - Has panics recovered and counted
//
// Calls the caller stopped waiting for stay owned by the tracker until they
// settle. Wait blocks until every such call is done.
type Tracker struct {
	clock   clockz.Clock
	stats   *Stats
	log     zerolog.Logger
	budget  time.Duration
	metrics *Metrics

	// mu guards inflight and idle. idle is closed each time inflight drops
	// back to zero, so the count may rise again while Wait is blocked.
	mu       sync.Mutex
	inflight int
	idle     chan struct{}
}

// NewTracker creates a tracker from the clock, logger, stats and timeout
// options. Other options are ignored.
func NewTracker(opts ...Option) *Tracker {
	cfg := newConfig(opts)
	return newTracker(cfg, &Metrics{})
}

func newTracker(cfg config, metrics *Metrics) *Tracker {
	return &Tracker{
		clock:   cfg.clock,
		stats:   cfg.stats,
		log:     cfg.logger,
		budget:  cfg.timeout,
		metrics: metrics,
	}
}

// Stats returns the collector samples are recorded into.
func (t *Tracker) Stats() *Stats {
	return t.stats
}

// Metrics returns a snapshot of the call counters.
func (t *Tracker) Metrics() Metrics {
	return t.metrics.snapshot()
}

// Wait blocks until no call is in flight or ctx ends. Calls started after
// the tracker went idle are not waited for.
func (t *Tracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	if t.inflight == 0 {
		t.mu.Unlock()
		return nil
	}
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire marks one unit of work in flight.
func (t *Tracker) acquire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight == 0 {
		t.idle = make(chan struct{})
	}
	t.inflight++
}

// release ends a unit of work started with acquire.
func (t *Tracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight--
	if t.inflight == 0 {
		close(t.idle)
	}
}

// Wrap runs fn through t under the operation id and returns its outcome,
// or a TimedOut result once budget elapses. A budget of zero or less uses
// the tracker's default.
//
// fn receives ctx unchanged: the budget does not cancel it.
func Wrap[V any](ctx context.Context, t *Tracker, id string, budget time.Duration, fn func(context.Context) (V, error)) Result[V] {
	if budget <= 0 {
		budget = t.budget
	}

	var state atomic.Int32
	atomic.AddInt64(&t.metrics.Invocations, 1)
	t.acquire()

	start := t.clock.Now()
	pending := goSettled(func() (V, error) {
		return fn(ctx)
	}, func(_ V, err error) {
		defer t.release()
		end := t.clock.Now()
		t.stats.Record(id, Sample{Start: start, End: end, Budget: budget})
		late := !state.CompareAndSwap(callRunning, callSettled) && state.Load() == callAbandoned
		t.settle(id, err, end.Sub(start), budget, late)
	})

	res := Race(ctx, t.clock, pending, budget)

	next := callDetached
	if res.TimedOut {
		next = callAbandoned
	}
	if !state.CompareAndSwap(callRunning, next) {
		// Settled before or while the race ended; its outcome wins.
		<-pending.Done()
		return settled(pending)
	}

	if res.TimedOut {
		atomic.AddInt64(&t.metrics.TimedOut, 1)
		t.log.Warn().
			Str("hook", id).
			Dur("budget", budget).
			Msg("hook timed out, continuing without it")
	}
	return res
}

// settle counts and logs the outcome of a call on its own goroutine.
func (t *Tracker) settle(id string, err error, took, budget time.Duration, late bool) {
	switch {
	case err == nil:
		atomic.AddInt64(&t.metrics.Completed, 1)
	case errors.Is(err, ErrHookPanicked):
		atomic.AddInt64(&t.metrics.Panicked, 1)
		atomic.AddInt64(&t.metrics.Failed, 1)
		t.log.Error().Err(err).Str("hook", id).Msg("hook panicked")
	default:
		atomic.AddInt64(&t.metrics.Failed, 1)
		t.log.Error().Err(err).Str("hook", id).Msg("hook failed")
	}

	if late {
		atomic.AddInt64(&t.metrics.LateCompletions, 1)
		t.log.Debug().
			Str("hook", id).
			Dur("took", took).
			Dur("budget", budget).
			Msg("hook settled after timeout")
	}
}

// record stores a sample for a call that was not made through Wrap.
func (t *Tracker) record(id string, start, end time.Time, budget time.Duration) {
	t.stats.Record(id, Sample{Start: start, End: end, Budget: budget})
}
