package normalize

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/chakssp/convergd/pkg/identity"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the score bridge.
type Metrics struct {
	// Identity resolution
	LookupsTotal *prometheus.CounterVec

	// Normalization
	NormalizationsTotal *prometheus.CounterVec
	NormalizedScore     prometheus.Histogram
}

// NewMetrics creates and registers Prometheus metrics for the score
// bridge. Registration happens once per process; later calls return the
// same instance.
//
// Metrics:
//   - convergd_identity_lookups_total{kind} - Lookups by match kind
//   - convergd_normalizations_total{method} - Scores normalized by method
//   - convergd_normalized_score - Distribution of normalized scores
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			LookupsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convergd_identity_lookups_total",
					Help: "Total identity lookups by match kind",
				},
				[]string{"kind"}, // "exact", "normalized_case_insensitive", "fuzzy_jaccard", "fuzzy_edit_distance", "none"
			),

			NormalizationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "convergd_normalizations_total",
					Help: "Total scores normalized by method",
				},
				[]string{"method"}, // "linear" or "percentile"
			),

			NormalizedScore: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "convergd_normalized_score",
					Help:    "Distribution of normalized confidence scores",
					Buckets: prometheus.LinearBuckets(0, 10, 11),
				},
			),
		}
	})
	return globalMetrics
}

// RecordLookup counts one identity lookup by its match kind.
func (m *Metrics) RecordLookup(kind identity.MatchKind) {
	if m == nil {
		return
	}
	m.LookupsTotal.WithLabelValues(string(kind)).Inc()
}

// RecordNormalization counts one normalization and observes its score.
func (m *Metrics) RecordNormalization(method Method, score int) {
	if m == nil {
		return
	}
	m.NormalizationsTotal.WithLabelValues(string(method)).Inc()
	m.NormalizedScore.Observe(float64(score))
}
