package phasez

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zoobzio/clockz"
)

// DefaultTimeout is the per-hook budget used when none is configured.
const DefaultTimeout = 200 * time.Millisecond

// maxHooks caps the registry so a misbehaving caller cannot grow it unbounded.
const maxHooks = 100

// Option configures a Runner or Tracker during creation.
type Option func(*config)

// config holds internal configuration for runner creation.
type config struct {
	clock         clockz.Clock // Time abstraction for deterministic testing
	logger        zerolog.Logger
	stats         *Stats
	timeout       time.Duration
	phaseTimeouts map[Phase]time.Duration
	workers       int
	unitPolicy    UnitFailurePolicy
}

func newConfig(opts []Option) config {
	cfg := config{
		clock:      clockz.RealClock,
		logger:     log.Logger,
		timeout:    DefaultTimeout,
		workers:    0, // unbounded
		unitPolicy: ContinueOnFailure,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.stats == nil {
		cfg.stats = NewStats()
	}
	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}
	return cfg
}

// WithTimeout sets the default budget applied to every time-boxed hook call.
// Values of zero or less keep DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithPhaseTimeout overrides the budget for a single phase.
// UnitCreated is never time boxed and ignores this option.
func WithPhaseTimeout(phase Phase, timeout time.Duration) Option {
	return func(c *config) {
		if c.phaseTimeouts == nil {
			c.phaseTimeouts = make(map[Phase]time.Duration)
		}
		c.phaseTimeouts[phase] = timeout
	}
}

// WithWorkers bounds how many hook calls of one phase are awaited at once.
// Default is 0, which waits on every capable hook concurrently.
//
// A bound turns a phase into waves, so its wait is no longer limited to a
// single budget.
func WithWorkers(count int) Option {
	return func(c *config) {
		c.workers = count
	}
}

// WithClock sets the clock used for timestamps and budgets.
// Default is clockz.RealClock for production use.
// Use clockz.FakeClock for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the logger for timeout, failure and late-completion events.
// Default is the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithStats shares an existing collector instead of creating one.
func WithStats(stats *Stats) Option {
	return func(c *config) {
		c.stats = stats
	}
}

// WithUnitFailurePolicy selects how RunUnitCreated reacts to a failing hook.
// Default is ContinueOnFailure.
func WithUnitFailurePolicy(policy UnitFailurePolicy) Option {
	return func(c *config) {
		c.unitPolicy = policy
	}
}

// budgetFor returns the configured budget of a phase.
func (c *config) budgetFor(p Phase) time.Duration {
	if d, ok := c.phaseTimeouts[p]; ok && d > 0 {
		return d
	}
	return c.timeout
}
