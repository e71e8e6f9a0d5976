package phasez

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NoBudget marks a sample whose call was not time boxed.
const NoBudget time.Duration = -1

// Sample is one timing measurement of a single hook call.
// Samples are values and are never modified after being recorded.
type Sample struct {
	Start  time.Time
	End    time.Time
	Budget time.Duration
}

// Duration returns the measured time of the call.
func (s Sample) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// TimedOut reports whether the call took longer than its budget.
// Samples recorded with NoBudget never time out.
func (s Sample) TimedOut() bool {
	return s.Budget >= 0 && s.Duration() > s.Budget
}

// Stats is an append-only collection of samples keyed by operation id.
//
// Samples under one id keep their recording order and are never merged.
// Ids keep the order in which they were first recorded so Report output is
// stable between runs.
//
// Thread Safety:
// All methods are safe for concurrent use. Late calls record from their own
// goroutines while phases are running.
type Stats struct {
	mu      sync.RWMutex
	samples map[string][]Sample
	order   []string
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{
		samples: make(map[string][]Sample),
	}
}

// Record appends a sample under id, creating the sequence on first use.
func (s *Stats) Record(id string, sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.samples[id]
	if !ok {
		s.order = append(s.order, id)
	}
	s.samples[id] = append(existing, sample)
}

// Get returns a copy of the samples recorded under id.
// The boolean is false when nothing was recorded since the last Clear.
func (s *Stats) Get(id string) ([]Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples, ok := s.samples[id]
	if !ok {
		return nil, false
	}
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out, true
}

// IDs returns recorded ids in first-recorded order.
func (s *Stats) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of samples across all ids.
func (s *Stats) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, samples := range s.samples {
		n += len(samples)
	}
	return n
}

// Clear drops every sample.
//
// Calls still running from before Clear record into the emptied collector
// when they settle. Their samples belong to a finished cycle but are kept.
func (s *Stats) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = make(map[string][]Sample)
	s.order = nil
}

// TotalBlockingTime sums the duration of every sample.
//
// Calls run in parallel, so this is a cost indicator rather than wall-clock
// time spent waiting.
func (s *Stats) TotalBlockingTime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total time.Duration
	for _, samples := range s.samples {
		for _, sample := range samples {
			total += sample.Duration()
		}
	}
	return total
}

// Report renders the collected samples, one line per id holding a single
// sample and one indented line per sample otherwise:
//
//	Collected stats by id:
//	    Bidder.BeforeTrigger: took 12ms ok
//	    Keyvalues.ExternalKeyValues:
//	        [1700000000000]: took 250ms timeout (budget 200ms)
//	        [1700000005000]: took 20ms ok
func (s *Stats) Report() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Collected stats by id:\n")
	for _, id := range s.order {
		samples := s.samples[id]
		if len(samples) == 1 {
			fmt.Fprintf(&b, "    %s: %s\n", id, describe(samples[0]))
			continue
		}
		fmt.Fprintf(&b, "    %s:\n", id)
		for _, sample := range samples {
			fmt.Fprintf(&b, "        [%d]: %s\n", sample.Start.UnixMilli(), describe(sample))
		}
	}
	return b.String()
}

func describe(s Sample) string {
	if s.TimedOut() {
		return fmt.Sprintf("took %dms timeout (budget %dms)", s.Duration().Milliseconds(), s.Budget.Milliseconds())
	}
	return fmt.Sprintf("took %dms ok", s.Duration().Milliseconds())
}
