package convergence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticCategories is a CategorySource backed by a fixed map.
type staticCategories map[string][]string

func (s staticCategories) ManualCategories(fileID string) []string { return s[fileID] }

func convergingHistory() []Iteration {
	return buildHistory(
		[]float64{0.6, 0.75, 0.9},
		[]string{"technical_insight"},
		[][]string{{"ai", "research"}},
	)
}

func TestNewServiceValidation(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewService()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), s.Config())
	})

	t.Run("rejects bad config", func(t *testing.T) {
		_, err := NewService(WithConfig(Config{MinIterations: 0, StabilityWindow: 3, MinConfidence: 0.85, MaxVariance: 0.05}))
		assert.Error(t, err)
	})

	t.Run("rejects bad weights", func(t *testing.T) {
		_, err := NewService(WithWeights(Weights{Confidence: -1}))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("renormalizes weights", func(t *testing.T) {
		s, err := NewService(WithWeights(Weights{Confidence: 3, Stability: 3, TypeConsistency: 2, CategoryAlignment: 1, Improvement: 1}))
		require.NoError(t, err)
		assert.InDelta(t, 0.3, s.weights.Confidence, 1e-12)
		assert.InDelta(t, 1.0, s.weights.sum(), 1e-12)
	})
}

func TestServiceEvaluate(t *testing.T) {
	ctx := context.Background()
	s, err := NewService(WithCategorySource(staticCategories{
		"report.md": {"ai", "research"},
	}))
	require.NoError(t, err)

	t.Run("converging history", func(t *testing.T) {
		result, err := s.Evaluate(ctx, "report.md", convergingHistory())
		require.NoError(t, err)
		assert.True(t, result.Converged)
		assert.True(t, result.SchemaReady)
		assert.InDelta(t, 0.8956617647058823, result.CompositeScore, 1e-9)
	})

	t.Run("empty file id", func(t *testing.T) {
		_, err := s.Evaluate(ctx, "", convergingHistory())
		assert.ErrorIs(t, err, ErrEmptyFileID)
	})

	t.Run("insufficient history", func(t *testing.T) {
		_, err := s.Evaluate(ctx, "new.md", nil)
		assert.ErrorIs(t, err, ErrInsufficientHistory)

		_, err = s.Evaluate(ctx, "new.md", convergingHistory()[:1])
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	})
}

func TestServiceEvaluateDeterminism(t *testing.T) {
	ctx := context.Background()
	history := convergingHistory()

	// Two independent services so the cache cannot mask a difference.
	s1, err := NewService()
	require.NoError(t, err)
	s2, err := NewService()
	require.NoError(t, err)

	r1, err := s1.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)
	r2, err := s2.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, history[2].Timestamp, r1.EvaluatedAt)
}

func TestServiceEvaluateCaching(t *testing.T) {
	ctx := context.Background()
	s, err := NewService()
	require.NoError(t, err)

	history := convergingHistory()

	first, err := s.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CacheSize())

	// Identical snapshot: served from cache, same instance.
	second, err := s.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, s.CacheSize())

	// A grown history changes the fingerprint and recomputes.
	grown := append(append([]Iteration{}, history...), Iteration{
		Confidence: 0.92,
		Label:      "technical_insight",
		Timestamp:  history[2].Timestamp.Add(time.Minute),
	})
	third, err := s.Evaluate(ctx, "report.md", grown)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 4, third.Iterations)
	assert.Equal(t, 2, s.CacheSize())

	// Invalidation drops every fingerprint for the file.
	assert.Equal(t, 2, s.InvalidateFile("report.md"))
	assert.Equal(t, 0, s.CacheSize())
}

func TestServiceEvalOptions(t *testing.T) {
	ctx := context.Background()
	s, err := NewService()
	require.NoError(t, err)

	t.Run("per-call weights are validated", func(t *testing.T) {
		_, err := s.Evaluate(ctx, "report.md", convergingHistory(),
			WithEvalWeights(Weights{Confidence: -1}))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("per-call config is validated", func(t *testing.T) {
		_, err := s.Evaluate(ctx, "report.md", convergingHistory(),
			WithEvalConfig(Config{MinIterations: 2, StabilityWindow: 0, MinConfidence: 0.85, MaxVariance: 0.05}))
		assert.Error(t, err)
	})

	t.Run("per-call minimum applies", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MinIterations = 4
		_, err := s.Evaluate(ctx, "strict.md", convergingHistory(), WithEvalConfig(cfg))
		assert.ErrorIs(t, err, ErrInsufficientHistory)
	})

	t.Run("skewed weights shift the composite", func(t *testing.T) {
		history := convergingHistory()

		balanced, err := s.Evaluate(ctx, "weights-a.md", history)
		require.NoError(t, err)

		// All weight on improvement (0.8 for this history) drags the
		// composite below the balanced blend.
		skewed, err := s.Evaluate(ctx, "weights-b.md", history,
			WithEvalWeights(Weights{Improvement: 1}))
		require.NoError(t, err)

		assert.Less(t, skewed.CompositeScore, balanced.CompositeScore)
		assert.InDelta(t, 0.8, skewed.CompositeScore, 1e-9)
	})
}

func TestServiceEvalOptionOverridesBypassCache(t *testing.T) {
	ctx := context.Background()
	s, err := NewService()
	require.NoError(t, err)

	history := convergingHistory()

	base, err := s.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)
	require.Equal(t, 1, s.CacheSize())

	// The cache key fingerprints only the history snapshot; a call
	// with overridden weights must not be served the cached
	// default-weight result.
	skewed, err := s.Evaluate(ctx, "report.md", history,
		WithEvalWeights(Weights{Improvement: 1}))
	require.NoError(t, err)
	assert.NotEqual(t, base.CompositeScore, skewed.CompositeScore)

	// Nor may the overridden result replace the cached one.
	assert.Equal(t, 1, s.CacheSize())
	again, err := s.Evaluate(ctx, "report.md", history)
	require.NoError(t, err)
	assert.Same(t, base, again)

	// A per-call config recomputes the same way.
	cfg := DefaultConfig()
	cfg.StabilityWindow = 2
	_, err = s.Evaluate(ctx, "report.md", history, WithEvalConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, 1, s.CacheSize())
}

func TestServiceCategorySource(t *testing.T) {
	ctx := context.Background()
	s, err := NewService(WithCategorySource(staticCategories{
		"curated.md": {"ai", "research"},
	}))
	require.NoError(t, err)

	curated, err := s.Evaluate(ctx, "curated.md", convergingHistory())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, curated.Components.CategoryAlignment, 1e-12)

	// Files without curation score the exact neutral value.
	uncurated, err := s.Evaluate(ctx, "uncurated.md", convergingHistory())
	require.NoError(t, err)
	assert.Equal(t, 0.5, uncurated.Components.CategoryAlignment)
}

func TestServiceConcurrentEvaluate(t *testing.T) {
	ctx := context.Background()
	s, err := NewService()
	require.NoError(t, err)

	history := convergingHistory()

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = s.Evaluate(ctx, "shared.md", history)
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		require.NoError(t, errs[i])
		require.NotNil(t, r)
		assert.True(t, r.Converged)
		assert.Equal(t, results[0].CompositeScore, r.CompositeScore)
	}
}
