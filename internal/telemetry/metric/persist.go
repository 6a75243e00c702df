package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every filekv metric.
const Namespace = "filekv"

// Cycle results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// PersistMetrics instruments the durability engine. A nil *PersistMetrics
// is valid and records nothing.
type PersistMetrics struct {
	Scheduled     prometheus.Counter
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	Pending       prometheus.Gauge
	DocumentBytes prometheus.Gauge
}

// NewPersistMetrics creates the persistence collectors and registers them
// on reg. A nil reg leaves them unregistered.
func NewPersistMetrics(reg prometheus.Registerer, constLabels prometheus.Labels) (*PersistMetrics, error) {
	m := &PersistMetrics{
		Scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "persist",
			Name:        "scheduled_total",
			Help:        "Persistence requests scheduled by mutations.",
			ConstLabels: constLabels,
		}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "persist",
			Name:        "cycles_total",
			Help:        "Persistence cycles run, by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   Namespace,
			Subsystem:   "persist",
			Name:        "cycle_duration_seconds",
			Help:        "Duration of a complete backup, write, commit and cleanup cycle.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   "persist",
			Name:        "pending",
			Help:        "Scheduled persistence requests not yet covered by a committed cycle.",
			ConstLabels: constLabels,
		}),
		DocumentBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   "persist",
			Name:        "document_bytes",
			Help:        "Size of the last committed document.",
			ConstLabels: constLabels,
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Scheduled, m.Cycles, m.CycleDuration, m.Pending, m.DocumentBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveScheduled records a new persistence request.
func (m *PersistMetrics) ObserveScheduled(pending uint64) {
	if m == nil {
		return
	}
	m.Scheduled.Inc()
	m.Pending.Set(float64(pending))
}

// ObserveCycle records a finished cycle.
func (m *PersistMetrics) ObserveCycle(elapsed time.Duration, size int, pending uint64, err error) {
	if m == nil {
		return
	}
	m.CycleDuration.Observe(elapsed.Seconds())
	m.Pending.Set(float64(pending))
	if err != nil {
		m.Cycles.WithLabelValues(ResultError).Inc()
		return
	}
	m.Cycles.WithLabelValues(ResultOK).Inc()
	m.DocumentBytes.Set(float64(size))
}
