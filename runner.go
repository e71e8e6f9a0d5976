package phasez

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// UnitFailurePolicy selects how RunUnitCreated reacts to a failing hook.
type UnitFailurePolicy int

const (
	// ContinueOnFailure logs the failure and still calls the remaining hooks
	// for the same unit.
	ContinueOnFailure UnitFailurePolicy = iota
	// AbortRemaining logs the failure and skips the remaining hooks for that
	// unit only. Later units are dispatched normally.
	AbortRemaining
)

// String returns the policy name used in configuration.
func (p UnitFailurePolicy) String() string {
	switch p {
	case AbortRemaining:
		return "abort"
	default:
		return "continue"
	}
}

// hookEntry is a registered hook with its resolved capabilities.
type hookEntry struct {
	id    string
	label string
	hook  any
	caps  capability
}

// Runner holds registered hooks and runs them phase by phase.
//
// This struct provides:
//   - Hook registration with capability resolution
//   - One Run method per phase, each fanning out to capable hooks only
//   - Timeout isolation and stats for every call through a Tracker
//   - Init and Reset propagation for hooks with service lifecycles
//
// Phase methods never return hook errors and never panic. Failures are
// logged and counted in Metrics.
//
// Thread Safety:
// Registration and phase methods are safe for concurrent use. Phases are
// expected to be called in lifecycle order and awaited one at a time; the
// runner does not prevent overlapping phases.
type Runner[U any] struct {
	cfg     config
	tracker *Tracker
	log     zerolog.Logger

	mu     sync.RWMutex
	hooks  []hookEntry
	closed bool

	// deliverMu serializes key-value deliveries from concurrent providers.
	deliverMu sync.Mutex

	metrics Metrics
}

// New creates a runner for units of type U with an ordered initial hook list.
//
// Default configuration:
//   - DefaultTimeout budget for every time-boxed phase
//   - Unbounded fan-out
//   - ContinueOnFailure for UnitCreated
//   - Global zerolog logger and real clock
//
// Example:
//
//	runner, err := phasez.New[Slot](
//	    []any{&Keyvalues{}, &Bidder{}},
//	    phasez.WithTimeout(200*time.Millisecond),
//	    phasez.WithPhaseTimeout(phasez.BeforeTrigger, time.Second),
//	)
func New[U any](hooks []any, opts ...Option) (*Runner[U], error) {
	cfg := newConfig(opts)

	r := &Runner[U]{
		cfg: cfg,
		log: cfg.logger,
	}
	r.tracker = newTracker(cfg, &r.metrics)

	for i, h := range hooks {
		if _, err := r.Register(h); err != nil {
			return nil, fmt.Errorf("hook %d: %w", i, err)
		}
	}
	return r, nil
}

// Register appends a hook to the live hook list. The hook is labeled by its
// Label method or its type name.
func (r *Runner[U]) Register(hook any) (Registration, error) {
	if hook == nil {
		return Registration{}, ErrNilHook
	}
	return r.RegisterNamed(labelOf(hook), hook)
}

// RegisterNamed appends a hook under an explicit telemetry label.
//
// Returns ErrNoCapabilities when the hook implements no phase interface,
// Initializer or Resetter, ErrTooManyHooks past the registry limit and
// ErrRunnerClosed after Close.
func (r *Runner[U]) RegisterNamed(label string, hook any) (Registration, error) {
	if hook == nil {
		return Registration{}, ErrNilHook
	}
	caps := capabilitiesOf[U](hook)
	if caps == 0 {
		return Registration{}, fmt.Errorf("%w: %T", ErrNoCapabilities, hook)
	}
	if label == "" {
		label = labelOf(hook)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return Registration{}, ErrRunnerClosed
	}
	if len(r.hooks) >= maxHooks {
		return Registration{}, ErrTooManyHooks
	}

	id := uuid.NewString()
	r.hooks = append(r.hooks, hookEntry{
		id:    id,
		label: label,
		hook:  hook,
		caps:  caps,
	})

	r.log.Debug().
		Str("hook", label).
		Str("id", id).
		Strs("phases", phaseNamesOf(caps)).
		Msg("hook registered")

	return Registration{
		id:    id,
		label: label,
		unregister: func() error {
			return r.remove(id)
		},
	}, nil
}

// Unregister removes a hook using its handle.
func (r *Runner[U]) Unregister(reg Registration) error {
	return reg.Unregister()
}

func (r *Runner[U]) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.hooks {
		if e.id == id {
			r.hooks = append(r.hooks[:i:i], r.hooks[i+1:]...)
			return nil
		}
	}
	return ErrHookNotFound
}

// Hooks returns the labels of registered hooks in registration order.
func (r *Runner[U]) Hooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.hooks))
	for i, e := range r.hooks {
		out[i] = e.label
	}
	return out
}

// selectHooks copies the entries holding c so dispatch runs without the lock.
func (r *Runner[U]) selectHooks(c capability) ([]hookEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRunnerClosed
	}
	return r.matching(c), nil
}

// matching returns the entries holding c. Callers hold mu.
func (r *Runner[U]) matching(c capability) []hookEntry {
	var out []hookEntry
	for _, e := range r.hooks {
		if e.caps.has(c) {
			out = append(out, e)
		}
	}
	return out
}

// beginPhase selects the hooks for a dispatched phase and holds the tracker
// busy until the returned release is called. The check against Close and the
// acquire happen under the same lock, so Close waits for every phase that
// got past it, later waves under WithWorkers included.
func (r *Runner[U]) beginPhase(c capability) ([]hookEntry, func(), error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, nil, ErrRunnerClosed
	}
	out := r.matching(c)
	if len(out) == 0 {
		return nil, func() {}, nil
	}
	r.tracker.acquire()
	return out, r.tracker.release, nil
}

// RunBeforeInit runs BeforeInitHook implementations in parallel. Call once,
// before the manager sets itself up.
func (r *Runner[U]) RunBeforeInit(ctx context.Context) {
	r.fanOut(ctx, BeforeInit, func(ctx context.Context, e hookEntry) error {
		return e.hook.(BeforeInitHook).BeforeInit(ctx)
	})
}

// RunBeforeTeardown runs BeforeTeardownHook implementations in parallel,
// right before the manager destroys its units for a reset.
func (r *Runner[U]) RunBeforeTeardown(ctx context.Context) {
	r.fanOut(ctx, BeforeTeardown, func(ctx context.Context, e hookEntry) error {
		return e.hook.(BeforeTeardownHook).BeforeTeardown(ctx)
	})
}

// RunExternalKeyValues asks every KeyValuesHook for its values in parallel
// and passes each result to deliver as soon as it resolves.
//
// A provider that misses its budget keeps running and its values are still
// delivered when they arrive, after this method has returned. Deliveries are
// serialized, so deliver does not need to be safe for concurrent use. When
// two late providers set the same key, the last delivery wins.
func (r *Runner[U]) RunExternalKeyValues(ctx context.Context, deliver func(map[string]string) error) {
	r.fanOut(ctx, ExternalKeyValues, func(ctx context.Context, e hookEntry) error {
		kv, err := e.hook.(KeyValuesHook).ExternalKeyValues(ctx)
		if err != nil {
			return err
		}
		if deliver == nil {
			return nil
		}

		r.deliverMu.Lock()
		defer r.deliverMu.Unlock()
		return deliver(kv)
	})
}

// RunUnitCreated calls every UnitCreatedHook for one unit, in registration
// order, on the caller's goroutine. Calls are not time boxed; each records a
// sample with NoBudget.
//
// A failing or panicking hook is logged. Under ContinueOnFailure the
// remaining hooks still run for the unit; under AbortRemaining they are
// skipped for this unit only.
func (r *Runner[U]) RunUnitCreated(unit U) {
	entries, release, err := r.beginPhase(capUnitCreated)
	if err != nil {
		r.log.Warn().Err(err).Str("phase", UnitCreated.String()).Msg("phase skipped")
		return
	}
	defer release()
	if len(entries) == 0 {
		return
	}
	atomic.AddInt64(&r.metrics.PhaseRuns, 1)

	for _, e := range entries {
		id := OperationID(e.label, UnitCreated)
		atomic.AddInt64(&r.metrics.Invocations, 1)

		start := r.cfg.clock.Now()
		err := protect(func() error {
			return e.hook.(UnitCreatedHook[U]).UnitCreated(unit)
		})
		end := r.cfg.clock.Now()

		r.tracker.record(id, start, end, NoBudget)
		r.tracker.settle(id, err, end.Sub(start), NoBudget, false)

		if err != nil && r.cfg.unitPolicy == AbortRemaining {
			r.log.Error().
				Str("phase", UnitCreated.String()).
				Str("hook", id).
				Msg("skipping remaining hooks for this unit")
			return
		}
	}
}

// RunAllUnitsCreated runs AllUnitsCreatedHook implementations in parallel
// once every unit of the cycle exists.
func (r *Runner[U]) RunAllUnitsCreated(ctx context.Context, units []U) {
	r.fanOut(ctx, AllUnitsCreated, func(ctx context.Context, e hookEntry) error {
		return e.hook.(AllUnitsCreatedHook[U]).AllUnitsCreated(ctx, units)
	})
}

// RunBeforeTrigger runs BeforeTriggerHook implementations in parallel,
// immediately before the manager goes live.
func (r *Runner[U]) RunBeforeTrigger(ctx context.Context) {
	r.fanOut(ctx, BeforeTrigger, func(ctx context.Context, e hookEntry) error {
		return e.hook.(BeforeTriggerHook).BeforeTrigger(ctx)
	})
}

// fanOut dispatches one phase to every capable hook through the tracker and
// returns once each call has settled or been abandoned to its budget.
func (r *Runner[U]) fanOut(ctx context.Context, phase Phase, call func(context.Context, hookEntry) error) {
	entries, release, err := r.beginPhase(phaseCaps[phase])
	if err != nil {
		r.log.Warn().Err(err).Str("phase", phase.String()).Msg("phase skipped")
		return
	}
	defer release()
	if len(entries) == 0 {
		return
	}
	atomic.AddInt64(&r.metrics.PhaseRuns, 1)

	budget := r.cfg.budgetFor(phase)

	var g errgroup.Group
	if r.cfg.workers > 0 {
		g.SetLimit(r.cfg.workers)
	}
	for _, e := range entries {
		id := OperationID(e.label, phase)
		g.Go(func() error {
			res := Wrap(ctx, r.tracker, id, budget, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, call(ctx, e)
			})
			if res.Err != nil {
				return fmt.Errorf("%s: %w", id, res.Err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.log.Error().
			Err(err).
			Str("phase", phase.String()).
			Msg("phase completed with failing hooks")
	}
}

// Init calls Init on every Initializer, one at a time in registration order.
// Unlike phases, Init reports failures; every hook is still attempted.
func (r *Runner[U]) Init(ctx context.Context) error {
	return r.propagate(capInit, func(e hookEntry) error {
		return e.hook.(Initializer).Init(ctx)
	})
}

// Reset starts a new cycle: it clears the stats, then calls Reset on every
// Resetter one at a time in registration order.
func (r *Runner[U]) Reset(ctx context.Context) error {
	r.ClearStats()
	return r.propagate(capReset, func(e hookEntry) error {
		return e.hook.(Resetter).Reset(ctx)
	})
}

func (r *Runner[U]) propagate(c capability, call func(hookEntry) error) error {
	entries, err := r.selectHooks(c)
	if err != nil {
		return err
	}

	var errs []error
	for _, e := range entries {
		if err := protect(func() error { return call(e) }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.label, err))
		}
	}
	return errors.Join(errs...)
}

// Stats returns the collector shared by every phase.
func (r *Runner[U]) Stats() *Stats {
	return r.tracker.Stats()
}

// ClearStats empties the collector. Calls still running from an earlier
// cycle record into the emptied collector when they settle.
func (r *Runner[U]) ClearStats() {
	r.tracker.Stats().Clear()
}

// Report renders the collected stats.
func (r *Runner[U]) Report() string {
	return r.tracker.Stats().Report()
}

// TotalBlockingTime sums the duration of every collected sample.
func (r *Runner[U]) TotalBlockingTime() time.Duration {
	return r.tracker.Stats().TotalBlockingTime()
}

// Metrics returns current runner counters.
func (r *Runner[U]) Metrics() Metrics {
	m := r.metrics.snapshot()

	r.mu.RLock()
	m.RegisteredHooks = int64(len(r.hooks))
	r.mu.RUnlock()

	return m
}

// Wait blocks until every dispatched call, abandoned ones included, has
// settled or ctx ends.
func (r *Runner[U]) Wait(ctx context.Context) error {
	return r.tracker.Wait(ctx)
}

// Close stops the runner: later registrations fail and later phases are
// skipped. It then waits for phases already dispatching and for abandoned
// calls to settle, or for ctx to end.
func (r *Runner[U]) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrAlreadyClosed
	}
	r.closed = true
	r.mu.Unlock()

	return r.tracker.Wait(ctx)
}

// protect runs fn and turns a panic into an error wrapping ErrHookPanicked.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
	}()
	return fn()
}

func phaseNamesOf(c capability) []string {
	var out []string
	for _, p := range c.phases() {
		out = append(out, p.String())
	}
	return out
}
