package phasez

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// BenchmarkFanOutScaling measures phase latency as the number of capable
// hooks grows. Hooks return immediately, so this is dispatch overhead.
func BenchmarkFanOutScaling(b *testing.B) {
	hookCounts := []int{1, 5, 10, 25, 50, 100}

	for _, count := range hookCounts {
		b.Run(fmt.Sprintf("hooks_%d", count), func(b *testing.B) {
			hooks := make([]any, count)
			for i := range hooks {
				hooks[i] = &triggerHook{label: fmt.Sprintf("hook%d", i)}
			}
			r, err := New[string](hooks, WithLogger(zerologNop()), WithTimeout(time.Second))
			if err != nil {
				b.Fatal(err)
			}
			defer r.Close(context.Background())

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				r.RunBeforeTrigger(context.Background())
				if i%100 == 0 {
					// Keep the collector from growing across the whole run.
					r.ClearStats()
				}
			}

			b.ReportMetric(float64(count), "hook_count")
		})
	}
}

// BenchmarkUnitCreated measures the synchronous per-unit path.
func BenchmarkUnitCreated(b *testing.B) {
	calls := &unitLog{}
	r, err := New[string]([]any{
		&unitHook{label: "A", log: calls},
		&unitHook{label: "B", log: calls},
	}, WithLogger(zerologNop()))
	if err != nil {
		b.Fatal(err)
	}
	defer r.Close(context.Background())

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r.RunUnitCreated("slot")
		if i%100 == 0 {
			r.ClearStats()
		}
	}
}

// BenchmarkWrap measures the cost of one tracked call.
func BenchmarkWrap(b *testing.B) {
	tracker := NewTracker(WithLogger(zerologNop()))
	ctx := context.Background()
	fn := func(context.Context) (int, error) { return 1, nil }

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		Wrap(ctx, tracker, "bench.BeforeInit", time.Second, fn)
		if i%100 == 0 {
			tracker.Stats().Clear()
		}
	}
}
