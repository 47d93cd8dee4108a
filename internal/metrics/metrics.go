// Package metrics exposes prometheus instruments for the sampling engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coral_sampler"

// Metrics holds the sampler instruments.
type Metrics struct {
	Ticks           prometheus.Counter
	TicksSkipped    prometheus.Counter
	Samples         prometheus.Counter
	SamplesDropped  prometheus.Counter
	CaptureErrors   prometheus.Counter
	SessionsStarted prometheus.Counter
	Running         prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := NilMetrics()
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register sampler metric: %w", err)
		}
	}
	return m, nil
}

// NilMetrics returns instruments that are not registered anywhere. They
// still count, which keeps callers free of nil checks.
func NilMetrics() *Metrics {
	return &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Timer ticks that ran the sampling routine.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Timer ticks skipped because the profiler lock was held.",
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Stacks folded into the active session.",
		}),
		SamplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_dropped_total",
			Help:      "Stacks the collector refused.",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Thread enumerations or stack captures that failed.",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Profiling sessions started.",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a profiling session is active.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Ticks,
		m.TicksSkipped,
		m.Samples,
		m.SamplesDropped,
		m.CaptureErrors,
		m.SessionsStarted,
		m.Running,
	}
}
