package phasez

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// logBuffer is a goroutine-safe sink for zerolog output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// count returns how many log lines contain every fragment.
func (b *logBuffer) count(fragments ...string) int {
	n := 0
	for _, line := range strings.Split(b.String(), "\n") {
		match := line != ""
		for _, f := range fragments {
			if !strings.Contains(line, f) {
				match = false
				break
			}
		}
		if match {
			n++
		}
	}
	return n
}

func newTestLogger() (zerolog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return zerolog.New(buf).Level(zerolog.DebugLevel), buf
}

var errBoom = errors.New("boom")

// wait sleeps d or returns early with ctx's error.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// triggerHook implements BeforeTrigger only.
type triggerHook struct {
	label    string
	delay    time.Duration
	err      error
	panicMsg string
	calls    atomic.Int32
	finished atomic.Int32
}

func (h *triggerHook) Label() string { return h.label }

func (h *triggerHook) BeforeTrigger(ctx context.Context) error {
	h.calls.Add(1)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	if err := wait(ctx, h.delay); err != nil {
		return err
	}
	h.finished.Add(1)
	return h.err
}

// initOnlyHook implements BeforeInit only.
type initOnlyHook struct {
	calls atomic.Int32
}

func (h *initOnlyHook) BeforeInit(ctx context.Context) error {
	h.calls.Add(1)
	return nil
}

// kvHook is a key-value provider.
type kvHook struct {
	label string
	delay time.Duration
	kv    map[string]string
	err   error
}

func (h *kvHook) Label() string { return h.label }

func (h *kvHook) ExternalKeyValues(ctx context.Context) (map[string]string, error) {
	if err := wait(ctx, h.delay); err != nil {
		return nil, err
	}
	return h.kv, h.err
}

// unitLog records unit hook calls across hooks in order.
type unitLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *unitLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *unitLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// unitHook implements UnitCreated for string units.
type unitHook struct {
	label    string
	log      *unitLog
	err      error
	panicMsg string
}

func (h *unitHook) Label() string { return h.label }

func (h *unitHook) UnitCreated(unit string) error {
	h.log.add(h.label + ":" + unit)
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	return h.err
}

// allUnitsHook implements AllUnitsCreated for string units.
type allUnitsHook struct {
	mu    sync.Mutex
	units []string
}

func (h *allUnitsHook) AllUnitsCreated(ctx context.Context, units []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.units = append(h.units, units...)
	return nil
}

// serviceHook has a service lifecycle and tears down between cycles.
type serviceHook struct {
	label     string
	initErr   error
	inits     atomic.Int32
	resets    atomic.Int32
	teardowns atomic.Int32
}

func (h *serviceHook) Label() string { return h.label }

func (h *serviceHook) Init(ctx context.Context) error {
	h.inits.Add(1)
	return h.initErr
}

func (h *serviceHook) Reset(ctx context.Context) error {
	h.resets.Add(1)
	return nil
}

func (h *serviceHook) BeforeTeardown(ctx context.Context) error {
	h.teardowns.Add(1)
	return nil
}

// noCapabilities implements nothing the runner can call.
type noCapabilities struct{}

func zerologNop() zerolog.Logger {
	return zerolog.Nop()
}
