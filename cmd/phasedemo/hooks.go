package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Slot is the unit descriptor the demo manager hands to hooks.
type Slot struct {
	ID    string
	Sizes [][2]int
}

// sleep waits d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Keyvalues is a contextual targeting provider with a random latency up to max.
type Keyvalues struct {
	max time.Duration
}

func (k *Keyvalues) ExternalKeyValues(ctx context.Context) (map[string]string, error) {
	if k.max > 0 {
		if err := sleep(ctx, time.Duration(rand.Int64N(int64(k.max)))); err != nil {
			return nil, err
		}
	}
	return map[string]string{
		"ctx_segment": fmt.Sprintf("%.4f", rand.Float64()),
	}, nil
}

// Bidder collects ad units as slots are created and runs an auction before
// the trigger.
type Bidder struct {
	latency time.Duration

	mu    sync.Mutex
	units []string
}

func (b *Bidder) BeforeInit(ctx context.Context) error {
	return nil
}

func (b *Bidder) BeforeTeardown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units = nil
	return nil
}

func (b *Bidder) UnitCreated(slot Slot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.units = append(b.units, slot.ID)
	return nil
}

func (b *Bidder) BeforeTrigger(ctx context.Context) error {
	return sleep(ctx, b.latency)
}

// Wrapper maps every slot of a cycle in one call and needs a one-time load.
type Wrapper struct {
	loaded bool
	fail   bool
}

func (w *Wrapper) Init(ctx context.Context) error {
	w.loaded = true
	return nil
}

func (w *Wrapper) Reset(ctx context.Context) error {
	return nil
}

func (w *Wrapper) AllUnitsCreated(ctx context.Context, slots []Slot) error {
	if !w.loaded {
		return fmt.Errorf("wrapper not loaded")
	}
	if w.fail {
		return fmt.Errorf("mapping %d slots: upstream unavailable", len(slots))
	}
	return sleep(ctx, time.Duration(len(slots))*5*time.Millisecond)
}
