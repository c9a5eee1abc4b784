package normalize

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/pkg/identity"
)

var tracer = otel.Tracer("convergd/normalize")

// Option configures a Service.
type Option func(*Service)

// WithCalibration overrides the default score calibration.
func WithCalibration(cal Calibration) Option {
	return func(s *Service) { s.cal = cal }
}

// WithMethod sets the normalization method used by LookupConfidence.
func WithMethod(method Method) Option {
	return func(s *Service) { s.method = method }
}

// WithResolver supplies a shared identity resolver. Defaults to a fresh
// empty resolver.
func WithResolver(resolver *identity.Resolver) Option {
	return func(s *Service) { s.resolver = resolver }
}

// WithLogger supplies a structured logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// Service bridges external similarity scores into the internal 0-100
// confidence domain: it resolves record identity, rescales the raw score,
// and annotates the result with how the identity was matched.
type Service struct {
	resolver *identity.Resolver
	cal      Calibration
	method   Method
	logger   *zap.Logger
	metrics  *Metrics
}

// NewService creates a score bridge with the production calibration and
// the percentile method unless overridden.
func NewService(opts ...Option) (*Service, error) {
	s := &Service{
		cal:    DefaultCalibration(),
		method: MethodPercentile,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.cal.Validate(); err != nil {
		return nil, fmt.Errorf("creating normalize service: %w", err)
	}
	if s.resolver == nil {
		s.resolver = identity.NewResolver()
	}
	s.metrics = NewMetrics()
	return s, nil
}

// ResolveIdentity builds the identity mapping for a batch of external
// records, replacing any prior mapping. Idempotent for identical input.
func (s *Service) ResolveIdentity(ctx context.Context, records []identity.ExternalRecord) *identity.Mapping {
	_, span := tracer.Start(ctx, "normalize.resolve_identity",
		trace.WithAttributes(attribute.Int("records.count", len(records))))
	defer span.End()

	mapping := s.resolver.Resolve(records)
	span.SetAttributes(attribute.Int("mapping.keys", mapping.KeyCount()))
	return mapping
}

// LookupConfidence resolves an external identifier and normalizes its
// record's raw score. An unresolvable identifier returns the fixed
// Unscored default; one bad record never fails a batch.
func (s *Service) LookupConfidence(ctx context.Context, externalID string) NormalizedConfidence {
	_, span := tracer.Start(ctx, "normalize.lookup_confidence",
		trace.WithAttributes(attribute.String("external.id", externalID)))
	defer span.End()

	match := s.resolver.Lookup(externalID)
	s.metrics.RecordLookup(match.Kind)

	if !match.Found() || match.Record == nil {
		span.SetAttributes(attribute.String("match.kind", string(identity.MatchNone)))
		s.logger.Debug("identity lookup missed", zap.String("external_id", externalID))
		return Unscored()
	}

	result := s.cal.Normalize(match.Record.RawScore, s.method)
	result.MatchKind = match.Kind
	result.FileID = match.FileID
	result.Similarity = match.Similarity
	s.metrics.RecordNormalization(result.Method, result.Score)

	span.SetAttributes(
		attribute.String("match.kind", string(match.Kind)),
		attribute.Int("confidence.score", result.Score),
	)
	s.logger.Debug("confidence normalized",
		zap.String("external_id", externalID),
		zap.String("file_id", result.FileID),
		zap.String("match_kind", string(match.Kind)),
		zap.Int("score", result.Score))
	return result
}

// Normalize rescales a raw score directly, without identity resolution.
// An empty method uses the service default.
func (s *Service) Normalize(raw float64, method Method) NormalizedConfidence {
	if method == "" {
		method = s.method
	}
	result := s.cal.Normalize(raw, method)
	s.metrics.RecordNormalization(result.Method, result.Score)
	return result
}

// Reset discards the current identity mapping and lookup statistics.
func (s *Service) Reset() {
	s.resolver.Reset()
}

// Stats returns a snapshot of identity lookup counters.
func (s *Service) Stats() identity.LookupStats {
	return s.resolver.Stats()
}

// MappingSize returns the number of records in the current mapping.
func (s *Service) MappingSize() int {
	return s.resolver.MappingSize()
}

// Calibration returns the calibration in effect.
func (s *Service) Calibration() Calibration {
	return s.cal
}

// Method returns the default normalization method in effect.
func (s *Service) Method() Method {
	return s.method
}
