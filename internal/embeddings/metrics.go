package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/chakssp/convergd/internal/embeddings"

// Metrics instruments embedding calls. Instrument creation failures
// leave the corresponding field nil and recording skips it, so a broken
// meter never blocks embedding.
type Metrics struct {
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers the embedding instruments on the global meter
// provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	register(logger, &m.duration, func() (metric.Float64Histogram, error) {
		return meter.Float64Histogram(
			"convergd.embedding.duration_seconds",
			metric.WithDescription("Embedding call latency by model and operation"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
		)
	})
	register(logger, &m.batchSize, func() (metric.Int64Histogram, error) {
		return meter.Int64Histogram(
			"convergd.embedding.batch_size",
			metric.WithDescription("Texts per embedding batch"),
			metric.WithUnit("{text}"),
			metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50, 100),
		)
	})
	register(logger, &m.errors, func() (metric.Int64Counter, error) {
		return meter.Int64Counter(
			"convergd.embedding.errors_total",
			metric.WithDescription("Embedding call failures by model and operation"),
			metric.WithUnit("{error}"),
		)
	})
	return m
}

// register assigns the built instrument, logging instead of failing
// when the meter rejects it.
func register[T any](logger *zap.Logger, dst *T, build func() (T, error)) {
	inst, err := build()
	if err != nil {
		if logger != nil {
			logger.Warn("registering embedding instrument", zap.Error(err))
		}
		return
	}
	*dst = inst
}

// RecordCall records one embedding call: latency always, batch size
// when positive, an error increment when err is non-nil.
func (m *Metrics) RecordCall(ctx context.Context, model, operation string, elapsed time.Duration, batch int, err error) {
	opts := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), opts)
	}
	if m.batchSize != nil && batch > 0 {
		m.batchSize.Record(ctx, int64(batch), opts)
	}
	if m.errors != nil && err != nil {
		m.errors.Add(ctx, 1, opts)
	}
}
