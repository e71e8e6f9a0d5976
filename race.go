package phasez

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
)

// Result is the outcome of racing a pending operation against its budget.
//
// When TimedOut is true, Value is the zero value and Err is nil: the
// operation is still running and its outcome is not surfaced to the caller.
type Result[V any] struct {
	Value    V
	Err      error
	TimedOut bool
}

// Pending is an operation running on its own goroutine.
type Pending[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Go starts fn on a new goroutine and returns its pending handle.
// A panic inside fn settles the handle with an error wrapping ErrHookPanicked.
func Go[V any](fn func() (V, error)) *Pending[V] {
	return goSettled(fn, nil)
}

// goSettled starts fn and calls settle on the same goroutine once fn returns,
// before Done is closed.
func goSettled[V any](fn func() (V, error), settle func(V, error)) *Pending[V] {
	p := &Pending[V]{done: make(chan struct{})}
	go p.run(fn, settle)
	return p
}

func (p *Pending[V]) run(fn func() (V, error), settle func(V, error)) {
	defer close(p.done)
	defer func() {
		if r := recover(); r != nil {
			var zero V
			p.value = zero
			p.err = fmt.Errorf("%w: %v", ErrHookPanicked, r)
		}
		if settle != nil {
			settle(p.value, p.err)
		}
	}()

	p.value, p.err = fn()
}

// Done is closed once the operation has settled.
func (p *Pending[V]) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled value and error. It must only be called after
// Done is closed.
func (p *Pending[V]) Result() (V, error) {
	return p.value, p.err
}

// Race waits for pending to settle, for budget to elapse on clock, or for ctx
// to end, whichever comes first.
//
//   - A nil pending resolves immediately with a zero Result
//   - A budget of zero or less waits without a timer
//   - The timer winning returns TimedOut; pending is not cancelled
//   - ctx ending returns ctx.Err() and is not a timeout
//
// Race never translates the operation's own error: it is returned in Err.
func Race[V any](ctx context.Context, clock clockz.Clock, pending *Pending[V], budget time.Duration) Result[V] {
	if pending == nil {
		return Result[V]{}
	}
	if clock == nil {
		clock = clockz.RealClock
	}

	// Prefer an already settled operation over a simultaneously fired timer.
	select {
	case <-pending.done:
		return settled(pending)
	default:
	}

	var timeout <-chan time.Time
	if budget > 0 {
		timeout = clock.After(budget)
	}

	select {
	case <-pending.done:
		return settled(pending)
	case <-timeout:
		return Result[V]{TimedOut: true}
	case <-ctx.Done():
		return Result[V]{Err: ctx.Err()}
	}
}

func settled[V any](p *Pending[V]) Result[V] {
	v, err := p.Result()
	return Result[V]{Value: v, Err: err}
}
