// Command phasedemo drives a simulated ad-slot manager through several
// lifecycle cycles and prints the collected hook stats after each one.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zoobzio/phasez"
)

type options struct {
	configPath string
	cycles     int
	slots      int
	timeout    time.Duration
	kvMax      time.Duration
	bidLatency time.Duration
	failWrap   bool
	verbose    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "phasedemo",
		Short: "Run simulated hooks through the ad lifecycle phases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "YAML runner config file")
	f.IntVar(&opts.cycles, "cycles", 3, "number of lifecycle cycles (first load plus resets)")
	f.IntVar(&opts.slots, "slots", 4, "slots created per cycle")
	f.DurationVar(&opts.timeout, "timeout", phasez.DefaultTimeout, "default per-hook budget")
	f.DurationVar(&opts.kvMax, "kv-max", 400*time.Millisecond, "maximum key-value provider latency")
	f.DurationVar(&opts.bidLatency, "bid-latency", 150*time.Millisecond, "bidder auction latency")
	f.BoolVar(&opts.failWrap, "fail-wrapper", false, "make the wrapper hook fail")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log late completions")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).With().Timestamp().Logger()

	runnerOpts := []phasez.Option{
		phasez.WithTimeout(opts.timeout),
		phasez.WithLogger(logger),
	}
	if opts.configPath != "" {
		data, err := os.ReadFile(opts.configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		cfg, err := phasez.ParseConfig(data)
		if err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, cfg.Options()...)
	}

	runner, err := phasez.New[Slot]([]any{
		&Keyvalues{max: opts.kvMax},
		&Bidder{latency: opts.bidLatency},
		&Wrapper{fail: opts.failWrap},
	}, runnerOpts...)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runner.Close(closeCtx)
	}()

	if err := runner.Init(ctx); err != nil {
		return fmt.Errorf("init hooks: %w", err)
	}

	targeting := newTargeting()
	runner.RunBeforeInit(ctx)

	for cycle := 0; cycle < opts.cycles; cycle++ {
		if cycle > 0 {
			runner.RunBeforeTeardown(ctx)
			if err := runner.Reset(ctx); err != nil {
				logger.Error().Err(err).Msg("reset hooks")
			}
		}

		started := time.Now()
		runner.RunExternalKeyValues(ctx, targeting.set)

		slots := make([]Slot, opts.slots)
		for i := range slots {
			slots[i] = Slot{ID: fmt.Sprintf("slot-%d-%d", cycle, i), Sizes: [][2]int{{300, 250}}}
			runner.RunUnitCreated(slots[i])
		}
		runner.RunAllUnitsCreated(ctx, slots)
		runner.RunBeforeTrigger(ctx)

		logger.Info().
			Int("cycle", cycle).
			Dur("waited", time.Since(started)).
			Dur("blocking", runner.TotalBlockingTime()).
			Int("keyvalues", targeting.len()).
			Msg("trigger")
		fmt.Print(runner.Report())
	}

	m := runner.Metrics()
	logger.Info().
		Int64("invocations", m.Invocations).
		Int64("timed_out", m.TimedOut).
		Int64("failed", m.Failed).
		Int64("late", m.LateCompletions).
		Msg("done")
	return nil
}

// targeting stands in for the manager's global targeting store.
type targeting struct {
	mu     sync.Mutex
	values map[string]string
}

func newTargeting() *targeting {
	return &targeting{values: make(map[string]string)}
}

func (t *targeting) set(kv map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range kv {
		t.values[k] = v
	}
	return nil
}

func (t *targeting) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}
