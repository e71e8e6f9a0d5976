package phasez

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSource is implemented by Runner and Tracker.
type MetricsSource interface {
	Metrics() Metrics
	Stats() *Stats
}

// PrometheusCollector exports a MetricsSource as Prometheus metrics.
// Values are read on every scrape; nothing is cached.
type PrometheusCollector struct {
	src MetricsSource

	invocations *prometheus.Desc
	completed   *prometheus.Desc
	failed      *prometheus.Desc
	panicked    *prometheus.Desc
	timedOut    *prometheus.Desc
	late        *prometheus.Desc
	phaseRuns   *prometheus.Desc
	registered  *prometheus.Desc
	blocking    *prometheus.Desc
	samples     *prometheus.Desc
}

// NewPrometheusCollector creates a collector for src under namespace.
//
//	prometheus.MustRegister(phasez.NewPrometheusCollector("ads", runner))
func NewPrometheusCollector(namespace string, src MetricsSource) *PrometheusCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "hooks", name), help, nil, nil)
	}
	return &PrometheusCollector{
		src:         src,
		invocations: desc("invocations_total", "Hook calls started."),
		completed:   desc("completed_total", "Hook calls that returned without error."),
		failed:      desc("failed_total", "Hook calls that returned an error or panicked."),
		panicked:    desc("panicked_total", "Hook calls that panicked."),
		timedOut:    desc("timed_out_total", "Hook calls that exceeded their budget."),
		late:        desc("late_completions_total", "Timed out hook calls that settled afterwards."),
		phaseRuns:   desc("phase_runs_total", "Phase runs that dispatched at least one hook."),
		registered:  desc("registered", "Currently registered hooks."),
		blocking:    desc("blocking_seconds", "Summed duration of collected samples in the current cycle."),
		samples:     desc("samples", "Collected samples in the current cycle."),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.invocations
	ch <- c.completed
	ch <- c.failed
	ch <- c.panicked
	ch <- c.timedOut
	ch <- c.late
	ch <- c.phaseRuns
	ch <- c.registered
	ch <- c.blocking
	ch <- c.samples
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.Metrics()
	stats := c.src.Stats()

	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.invocations, m.Invocations)
	counter(c.completed, m.Completed)
	counter(c.failed, m.Failed)
	counter(c.panicked, m.Panicked)
	counter(c.timedOut, m.TimedOut)
	counter(c.late, m.LateCompletions)
	counter(c.phaseRuns, m.PhaseRuns)
	gauge(c.registered, float64(m.RegisteredHooks))
	gauge(c.blocking, stats.TotalBlockingTime().Seconds())
	gauge(c.samples, float64(stats.Len()))
}
