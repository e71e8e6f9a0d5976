package phasez

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the declarative form of the runner options, for managers that
// keep their budgets next to the rest of their settings.
//
//	timeout: 200ms
//	workers: 0
//	unit_failure_policy: continue
//	phase_timeouts:
//	  BeforeTrigger: 1s
type Config struct {
	Timeout           time.Duration            `yaml:"timeout"`
	Workers           int                      `yaml:"workers"`
	UnitFailurePolicy string                   `yaml:"unit_failure_policy"`
	PhaseTimeouts     map[string]time.Duration `yaml:"phase_timeouts"`
}

// ParseConfig decodes and validates a YAML document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidConfig, c.Timeout)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: negative workers %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := parsePolicy(c.UnitFailurePolicy); err != nil {
		return err
	}
	for name, d := range c.PhaseTimeouts {
		p, ok := ParsePhase(name)
		if !ok {
			return fmt.Errorf("%w: unknown phase %q", ErrInvalidConfig, name)
		}
		if p.Contract() == Synchronous {
			return fmt.Errorf("%w: phase %s is not time boxed", ErrInvalidConfig, name)
		}
		if d <= 0 {
			return fmt.Errorf("%w: phase %s timeout must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// Options converts the config into runner options. Zero values keep the
// defaults. The config must be valid.
func (c Config) Options() []Option {
	var opts []Option
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	if policy, err := parsePolicy(c.UnitFailurePolicy); err == nil {
		opts = append(opts, WithUnitFailurePolicy(policy))
	}
	for name, d := range c.PhaseTimeouts {
		if p, ok := ParsePhase(name); ok {
			opts = append(opts, WithPhaseTimeout(p, d))
		}
	}
	return opts
}

func parsePolicy(s string) (UnitFailurePolicy, error) {
	switch s {
	case "", "continue":
		return ContinueOnFailure, nil
	case "abort":
		return AbortRemaining, nil
	default:
		return 0, fmt.Errorf("%w: unknown unit failure policy %q", ErrInvalidConfig, s)
	}
}
