package convergence

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the convergence engine.
type Metrics struct {
	// Evaluation outcomes
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	CompositeScore     prometheus.Histogram
	SchemaReadyTotal   prometheus.Counter

	// Cache performance
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheSize           prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the engine.
//
// Registration runs under sync.Once so repeated calls (one per Service)
// cannot trigger duplicate-collector panics; every caller shares the same
// collectors.
//
// Metrics:
//   - convergd_evaluations_total{status} - evaluations by decision
//   - convergd_evaluation_duration_seconds - full pipeline latency
//   - convergd_composite_score - distribution of composite scores
//   - convergd_schema_ready_total - evaluations that cleared schema gating
//   - convergd_cache_hits_total / convergd_cache_misses_total
//   - convergd_cache_evictions_total - LRU evictions
//   - convergd_cache_size - current cached results
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			EvaluationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convergd_evaluations_total",
					Help: "Total number of convergence evaluations by decision",
				},
				[]string{"status"}, // "converged" or "not_converged"
			),

			EvaluationDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convergd_evaluation_duration_seconds",
					Help:    "Duration of convergence evaluations in seconds",
					Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
				},
			),

			CompositeScore: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convergd_composite_score",
					Help:    "Distribution of composite convergence scores",
					Buckets: prometheus.LinearBuckets(0.0, 0.1, 11), // 0.0 to 1.0
				},
			),

			SchemaReadyTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convergd_schema_ready_total",
					Help: "Total number of evaluations that met schema-ready gating",
				},
			),

			CacheHitsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convergd_cache_hits_total",
					Help: "Total number of convergence cache hits",
				},
			),

			CacheMissesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convergd_cache_misses_total",
					Help: "Total number of convergence cache misses",
				},
			),

			CacheEvictionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "convergd_cache_evictions_total",
					Help: "Total number of LRU evictions from the convergence cache",
				},
			),

			CacheSize: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "convergd_cache_size",
					Help: "Current number of cached convergence results",
				},
			),
		}
	})

	return globalMetrics
}

// RecordEvaluation records a completed evaluation and its latency.
func (m *Metrics) RecordEvaluation(result *Result, duration time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(string(result.Status)).Inc()
	m.EvaluationDuration.Observe(duration.Seconds())
	m.CompositeScore.Observe(result.CompositeScore)
	if result.SchemaReady {
		m.SchemaReadyTotal.Inc()
	}
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction records an LRU eviction.
func (m *Metrics) RecordCacheEviction() {
	if m == nil {
		return
	}
	m.CacheEvictionsTotal.Inc()
}

// SetCacheSize updates the cache size gauge.
func (m *Metrics) SetCacheSize(size int) {
	if m == nil {
		return
	}
	m.CacheSize.Set(float64(size))
}
