// Package observability holds the Prometheus collectors for the composer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for composition results.
const (
	OutcomeComposed = "composed"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
)

// Metrics bundles the composer's collectors. A nil *Metrics is a valid no-op
// receiver so instrumentation can stay unconditional at call sites.
type Metrics struct {
	compositions *prometheus.CounterVec
	duration     prometheus.Histogram
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		compositions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vizpipe_compositions_total",
				Help: "Total expression compositions by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vizpipe_composition_duration_seconds",
				Help:    "Time spent composing expressions.",
				Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
			},
		),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizpipe_expression_cache_hits_total",
			Help: "Composed-expression cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vizpipe_expression_cache_misses_total",
			Help: "Composed-expression cache misses.",
		}),
	}
	reg.MustRegister(m.compositions, m.duration, m.cacheHits, m.cacheMisses)
	return m
}

// ObserveComposition records one composition with its outcome and duration.
func (m *Metrics) ObserveComposition(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.compositions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveCache records a cache lookup result.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
