package observ

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "shaderrefl"
	subsystem = "layout"
)

// LayoutMetrics holds prometheus collectors for the layout engine and
// binding extraction. A nil *LayoutMetrics is valid and records nothing.
type LayoutMetrics struct {
	computations *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	failures     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	extractions  *prometheus.CounterVec
}

// NewLayoutMetrics creates unregistered collectors.
func NewLayoutMetrics() *LayoutMetrics {
	return &LayoutMetrics{
		computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "computations_total",
				Help:      "Type layouts computed, by target.",
			},
			[]string{"target"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Type layout requests served from the memo table, by target.",
			},
			[]string{"target"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "failures_total",
				Help:      "Layout failures by target and error kind.",
			},
			[]string{"target", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "program_duration_seconds",
				Help:      "Time to lay out a whole program for one target.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~160ms
			},
			[]string{"target", "result"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "binding",
				Name:      "extractions_total",
				Help:      "Binding-range extractions performed, by target.",
			},
			[]string{"target"},
		),
	}
}

// MustRegister registers all collectors with r.
func (m *LayoutMetrics) MustRegister(r prometheus.Registerer) {
	r.MustRegister(m.computations, m.cacheHits, m.failures, m.duration, m.extractions)
}

// LayoutComputed counts a fresh type-layout computation.
func (m *LayoutMetrics) LayoutComputed(target string) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(target).Inc()
}

// CacheHit counts a memoized layout lookup.
func (m *LayoutMetrics) CacheHit(target string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(target).Inc()
}

// LayoutFailed counts a failure of the given kind.
func (m *LayoutMetrics) LayoutFailed(target, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(target, kind).Inc()
}

// ObserveProgram records a whole-program layout duration.
func (m *LayoutMetrics) ObserveProgram(target string, durationSeconds float64, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.duration.WithLabelValues(target, result).Observe(durationSeconds)
}

// BindingsExtracted counts a binding extraction.
func (m *LayoutMetrics) BindingsExtracted(target string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(target).Inc()
}
