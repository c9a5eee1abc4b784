package convergence

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("convergd/convergence")

// CategorySource provides the manually curated categories for a file.
//
// The category-alignment scorer is the only component with an external
// dependency; it reads curation through this interface. Implementations
// must be safe for concurrent use. A nil-equivalent source (no curation
// anywhere) yields the neutral 0.5 alignment for every file.
type CategorySource interface {
	ManualCategories(fileID string) []string
}

type noCuration struct{}

func (noCuration) ManualCategories(string) []string { return nil }

// Option configures a Service at construction time.
type Option func(*Service)

// WithConfig overrides the default evaluation parameters.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithWeights overrides the default composite weights. The weights are
// validated and renormalized by NewService.
func WithWeights(w Weights) Option {
	return func(s *Service) { s.weights = w }
}

// WithCache supplies a shared result cache. By default every Service owns a
// cache with the package default TTL and size cap.
func WithCache(cache *Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithCategorySource supplies the curated-category accessor used by the
// category-alignment scorer.
func WithCategorySource(src CategorySource) Option {
	return func(s *Service) { s.categories = src }
}

// WithLogger supplies a structured logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// EvalOption overrides evaluation parameters for a single call.
type EvalOption func(*evalOptions)

type evalOptions struct {
	weights *Weights
	config  *Config
}

// WithEvalWeights applies caller-supplied composite weights to one
// evaluation. Invalid weights fail the call with ErrInvalidWeights.
func WithEvalWeights(w Weights) EvalOption {
	return func(o *evalOptions) { o.weights = &w }
}

// WithEvalConfig applies a caller-supplied configuration to one evaluation.
func WithEvalConfig(cfg Config) EvalOption {
	return func(o *evalOptions) { o.config = &cfg }
}

// Service is the convergence engine facade: cache lookup, metric
// extraction, component scoring, and judgment behind one call.
//
// A Service is safe for concurrent use; all pipeline stages are pure and
// the cache is internally guarded.
type Service struct {
	cfg        Config
	weights    Weights
	categories CategorySource
	cache      *Cache
	logger     *zap.Logger
	metrics    *Metrics
}

// NewService creates a convergence engine with the given options.
//
// Returns an error when the configured parameters or weights are unusable.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		cfg:     DefaultConfig(),
		weights: DefaultWeights(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("convergence config: %w", err)
	}
	weights, err := NewWeights(s.weights)
	if err != nil {
		return nil, err
	}
	s.weights = weights

	if s.cache == nil {
		s.cache = NewCache(DefaultCacheTTL, DefaultCacheMaxEntries)
	}
	if s.categories == nil {
		s.categories = noCuration{}
	}

	s.metrics = NewMetrics()
	s.cache.SetMetrics(s.metrics)
	return s, nil
}

// Evaluate judges one file's analysis history.
//
// Fails with ErrInsufficientHistory when the history is shorter than
// MinIterations and with ErrInvalidWeights when per-call weights are
// unusable. A cache hit for the exact history snapshot short-circuits the
// whole pipeline. Treat the returned Result as immutable; it is shared with
// the cache.
func (s *Service) Evaluate(ctx context.Context, fileID string, history []Iteration, opts ...EvalOption) (*Result, error) {
	start := time.Now()
	_, span := tracer.Start(ctx, "convergence.evaluate", trace.WithAttributes(
		attribute.String("file.id", fileID),
		attribute.Int("history.iterations", len(history)),
	))
	defer span.End()

	if fileID == "" {
		return nil, ErrEmptyFileID
	}

	var eo evalOptions
	for _, opt := range opts {
		opt(&eo)
	}
	cfg := s.cfg
	if eo.config != nil {
		cfg = *eo.config
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("convergence config: %w", err)
		}
	}
	weights := s.weights
	if eo.weights != nil {
		w, err := NewWeights(*eo.weights)
		if err != nil {
			return nil, err
		}
		weights = w
	}

	// Per-call overrides change the scoring inputs, so those results
	// neither read nor populate the cache; otherwise a hit keyed only on
	// the history snapshot could return a result computed under
	// different weights.
	overridden := eo.config != nil || eo.weights != nil

	if !overridden && len(history) >= cfg.MinIterations {
		key := NewCacheKey(fileID, len(history), lastTimestamp(history))
		if cached, ok := s.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			s.logger.Debug("convergence cache hit",
				zap.String("file_id", fileID),
				zap.Int("iterations", key.Iterations))
			return cached, nil
		}
	}

	metrics, err := ExtractMetrics(history, cfg)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", fileID, err)
	}

	components := ComputeComponents(metrics, s.categories.ManualCategories(fileID), cfg)
	result := Judge(fileID, metrics, components, weights, cfg)

	if !overridden {
		s.cache.Set(NewCacheKey(fileID, metrics.Iterations, metrics.LastTimestamp), result)
	}
	s.metrics.RecordEvaluation(result, time.Since(start))

	span.SetAttributes(
		attribute.Float64("composite", result.CompositeScore),
		attribute.Bool("converged", result.Converged),
	)
	s.logger.Debug("convergence evaluated",
		zap.String("file_id", fileID),
		zap.Int("iterations", result.Iterations),
		zap.Float64("composite", result.CompositeScore),
		zap.Bool("converged", result.Converged),
		zap.Bool("schema_ready", result.SchemaReady))

	return result, nil
}

// InvalidateFile drops every cached result for a file. Returns the number
// of entries removed.
func (s *Service) InvalidateFile(fileID string) int {
	return s.cache.Invalidate(fileID)
}

// CacheSize returns the current number of cached results.
func (s *Service) CacheSize() int {
	return s.cache.Size()
}

// CacheStats returns a snapshot of cache effectiveness counters.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Config returns the service's default evaluation parameters.
func (s *Service) Config() Config {
	return s.cfg
}

func lastTimestamp(history []Iteration) time.Time {
	last := history[0].Timestamp
	for _, it := range history[1:] {
		if it.Timestamp.After(last) {
			last = it.Timestamp
		}
	}
	return last
}
