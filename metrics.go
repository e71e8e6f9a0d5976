package phasez

import "sync/atomic"

// Metrics provides observability counters for a Runner.
// All counter fields are updated atomically; Snapshot copies are plain values.
type Metrics struct {
	// Dispatch counters
	Invocations int64 // Hook calls started, all phases
	Completed   int64 // Calls that returned without error
	Failed      int64 // Calls that returned an error, panics included
	Panicked    int64 // Calls that panicked
	TimedOut    int64 // Calls the runner stopped waiting for

	// LateCompletions counts timed out calls that eventually settled.
	LateCompletions int64

	// PhaseRuns counts phase method calls that dispatched at least one hook.
	PhaseRuns int64

	// RegisteredHooks is the current hook count (read under the runner lock).
	RegisteredHooks int64
}

func (m *Metrics) snapshot() Metrics {
	return Metrics{
		Invocations:     atomic.LoadInt64(&m.Invocations),
		Completed:       atomic.LoadInt64(&m.Completed),
		Failed:          atomic.LoadInt64(&m.Failed),
		Panicked:        atomic.LoadInt64(&m.Panicked),
		TimedOut:        atomic.LoadInt64(&m.TimedOut),
		LateCompletions: atomic.LoadInt64(&m.LateCompletions),
		PhaseRuns:       atomic.LoadInt64(&m.PhaseRuns),
	}
}
