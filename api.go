// Package phasez runs independently authored lifecycle hooks around a fixed
// sequence of phases, with per-hook timeout isolation and timing stats.
//
// A Runner holds hooks that each implement a subset of the phase capability
// interfaces. The surrounding manager calls one Run method per phase at the
// points of its own lifecycle; the runner fans the phase out to every capable
// hook, races each call against a timeout budget and records one Sample per
// call, even for calls that finish after the caller stopped waiting.
//
// Guarantees:
//   - A phase method never returns a hook's error and never panics
//   - A slow hook delays a phase by at most its budget
//   - Timed out hooks keep running; their late completion is still measured
//   - Hooks are filtered by capability at registration, not at dispatch
//
// Basic Usage:
//
//	runner, err := phasez.New[Slot](nil, phasez.WithTimeout(200*time.Millisecond))
//	if err != nil {
//		return err
//	}
//	defer runner.Close(context.Background())
//
//	if _, err := runner.Register(&BidderHook{}); err != nil {
//		return err
//	}
//
//	runner.RunBeforeInit(ctx)
//	runner.RunExternalKeyValues(ctx, func(kv map[string]string) error {
//		return targeting.Set(kv)
//	})
//	for _, slot := range slots {
//		runner.RunUnitCreated(slot)
//	}
//	runner.RunAllUnitsCreated(ctx, slots)
//	runner.RunBeforeTrigger(ctx)
//
//	log.Print(runner.Report())
//
// Reset cycles:
//
//	runner.RunBeforeTeardown(ctx)
//	runner.Reset(ctx) // clears stats and propagates Reset to hooks
//
// Hooks receive the phase context unchanged. A budget only stops the runner
// from waiting; it does not cancel the hook.
package phasez

// Phase identifies a lifecycle moment at which capable hooks are invoked.
//
// Phases are listed in the order a manager is expected to run them. The
// runner trusts that order and does not enforce it.
type Phase int

const (
	// BeforeInit runs once per process, before the manager sets itself up.
	BeforeInit Phase = iota
	// BeforeTeardown runs before every reset cycle tears units down.
	BeforeTeardown
	// ExternalKeyValues collects key-values from providers once per init or reset.
	ExternalKeyValues
	// UnitCreated runs synchronously for every created unit.
	UnitCreated
	// AllUnitsCreated runs once all units of a cycle exist.
	AllUnitsCreated
	// BeforeTrigger runs immediately before the manager goes live.
	BeforeTrigger
)

// Contract describes how a phase aggregates hook results.
type Contract int

const (
	// FireAndForget phases run hooks in parallel and ignore their values.
	FireAndForget Contract = iota
	// CollectValues phases run hooks in parallel and deliver each value as it resolves.
	CollectValues
	// Synchronous phases run hooks one after another without a timeout.
	Synchronous
)

var phaseNames = [...]string{
	BeforeInit:        "BeforeInit",
	BeforeTeardown:    "BeforeTeardown",
	ExternalKeyValues: "ExternalKeyValues",
	UnitCreated:       "UnitCreated",
	AllUnitsCreated:   "AllUnitsCreated",
	BeforeTrigger:     "BeforeTrigger",
}

// Phases returns every phase in lifecycle order.
func Phases() []Phase {
	return []Phase{BeforeInit, BeforeTeardown, ExternalKeyValues, UnitCreated, AllUnitsCreated, BeforeTrigger}
}

// String returns the capability name, used as the suffix of operation ids.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "Unknown"
	}
	return phaseNames[p]
}

// Contract returns the result aggregation contract of the phase.
func (p Phase) Contract() Contract {
	switch p {
	case ExternalKeyValues:
		return CollectValues
	case UnitCreated:
		return Synchronous
	default:
		return FireAndForget
	}
}

// Repeatable reports whether the phase may run more than once per process.
func (p Phase) Repeatable() bool {
	return p != BeforeInit
}

// ParsePhase resolves a capability name back to its Phase.
func ParsePhase(name string) (Phase, bool) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), true
		}
	}
	return 0, false
}

// OperationID builds the stats identifier of one hook's call in a phase.
func OperationID(label string, p Phase) string {
	return label + "." + p.String()
}
