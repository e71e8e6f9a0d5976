package phasez

import (
	"context"
	"fmt"
	"strings"
)

// BeforeInitHook is implemented by hooks that prepare before the manager's
// own setup. Called once per process.
type BeforeInitHook interface {
	BeforeInit(ctx context.Context) error
}

// BeforeTeardownHook is implemented by hooks that must forget everything
// about the current units before a reset. Not called on first load.
type BeforeTeardownHook interface {
	BeforeTeardown(ctx context.Context) error
}

// KeyValuesHook is implemented by external key-value providers.
// The returned values are delivered to the manager as soon as they resolve,
// including after the phase stopped waiting.
type KeyValuesHook interface {
	ExternalKeyValues(ctx context.Context) (map[string]string, error)
}

// UnitCreatedHook is implemented by hooks that react to each created unit.
// It must be fast and must not block: it is neither time boxed nor run in
// parallel. Slow work belongs in AllUnitsCreated.
type UnitCreatedHook[U any] interface {
	UnitCreated(unit U) error
}

// AllUnitsCreatedHook is implemented by hooks that work on every unit of a
// cycle at once.
type AllUnitsCreatedHook[U any] interface {
	AllUnitsCreated(ctx context.Context, units []U) error
}

// BeforeTriggerHook is implemented by hooks that must finish before the
// manager goes live, such as bidders.
type BeforeTriggerHook interface {
	BeforeTrigger(ctx context.Context) error
}

// Initializer is implemented by hooks that need one-time setup, run by
// Runner.Init before any phase.
type Initializer interface {
	Init(ctx context.Context) error
}

// Resetter is implemented by hooks that keep state across cycles, run by
// Runner.Reset.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Labeled lets a hook choose its telemetry label.
type Labeled interface {
	Label() string
}

// capability is the set of interfaces a hook implements, resolved once at
// registration.
type capability uint16

const (
	capBeforeInit capability = 1 << iota
	capBeforeTeardown
	capExternalKeyValues
	capUnitCreated
	capAllUnitsCreated
	capBeforeTrigger
	capInit
	capReset
)

var phaseCaps = [...]capability{
	BeforeInit:        capBeforeInit,
	BeforeTeardown:    capBeforeTeardown,
	ExternalKeyValues: capExternalKeyValues,
	UnitCreated:       capUnitCreated,
	AllUnitsCreated:   capAllUnitsCreated,
	BeforeTrigger:     capBeforeTrigger,
}

func (c capability) has(other capability) bool {
	return c&other != 0
}

func (c capability) phases() []Phase {
	var out []Phase
	for _, p := range Phases() {
		if c.has(phaseCaps[p]) {
			out = append(out, p)
		}
	}
	return out
}

func capabilitiesOf[U any](hook any) capability {
	var c capability
	if _, ok := hook.(BeforeInitHook); ok {
		c |= capBeforeInit
	}
	if _, ok := hook.(BeforeTeardownHook); ok {
		c |= capBeforeTeardown
	}
	if _, ok := hook.(KeyValuesHook); ok {
		c |= capExternalKeyValues
	}
	if _, ok := hook.(UnitCreatedHook[U]); ok {
		c |= capUnitCreated
	}
	if _, ok := hook.(AllUnitsCreatedHook[U]); ok {
		c |= capAllUnitsCreated
	}
	if _, ok := hook.(BeforeTriggerHook); ok {
		c |= capBeforeTrigger
	}
	if _, ok := hook.(Initializer); ok {
		c |= capInit
	}
	if _, ok := hook.(Resetter); ok {
		c |= capReset
	}
	return c
}

// labelOf returns the hook's Label, or its bare type name.
func labelOf(hook any) string {
	if l, ok := hook.(Labeled); ok && l.Label() != "" {
		return l.Label()
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", hook), "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
