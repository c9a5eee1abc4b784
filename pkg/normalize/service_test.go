package normalize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chakssp/convergd/pkg/identity"
)

func TestNewService(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s, err := NewService()
		require.NoError(t, err)
		assert.Equal(t, MethodPercentile, s.Method())
		assert.Equal(t, DefaultCalibration(), s.Calibration())
		assert.Equal(t, 0, s.MappingSize())
	})

	t.Run("rejects invalid calibration", func(t *testing.T) {
		_, err := NewService(WithCalibration(Calibration{Min: 10, Max: 5, Median: 7}))
		assert.ErrorIs(t, err, ErrInvalidCalibration)
	})
}

func TestLookupConfidenceUnmapped(t *testing.T) {
	s, err := NewService()
	require.NoError(t, err)

	// No resolve has happened: the lookup degrades to the fixed default.
	got := s.LookupConfidence(context.Background(), "unknown-file.md")
	assert.Equal(t, Unscored(), got)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, MethodLinear, got.Method)
	assert.Equal(t, identity.MatchNone, got.MatchKind)
	assert.Empty(t, got.FileID)
}

func TestLookupConfidencePercentile(t *testing.T) {
	s, err := NewService()
	require.NoError(t, err)

	ctx := context.Background()
	s.ResolveIdentity(ctx, []identity.ExternalRecord{
		{ExternalID: "Report-Final.md", RawScore: 21.5},
	})

	// Slug query resolves through the normalized variants; the median raw
	// score lands at exactly 50.
	got := s.LookupConfidence(ctx, "report-final")
	assert.Equal(t, 50, got.Score)
	assert.Equal(t, 21.5, got.RawScore)
	assert.Equal(t, MethodPercentile, got.Method)
	assert.Equal(t, identity.MatchNormalized, got.MatchKind)
	assert.Equal(t, "Report-Final.md", got.FileID)
	assert.Equal(t, 1.0, got.Similarity)
}

func TestLookupConfidenceLinear(t *testing.T) {
	s, err := NewService(WithMethod(MethodLinear))
	require.NoError(t, err)

	ctx := context.Background()
	s.ResolveIdentity(ctx, []identity.ExternalRecord{
		{ExternalID: "Report-Final.md", RawScore: 21.5},
	})

	got := s.LookupConfidence(ctx, "Report-Final.md")
	assert.Equal(t, identity.MatchExact, got.MatchKind)
	assert.Equal(t, MethodLinear, got.Method)
	assert.Equal(t, 48, got.Score) // 47.66... rounds up
}

func TestServiceResolveReplacesMapping(t *testing.T) {
	s, err := NewService()
	require.NoError(t, err)
	ctx := context.Background()

	s.ResolveIdentity(ctx, []identity.ExternalRecord{
		{ExternalID: "first.md", RawScore: 10},
	})
	require.Equal(t, 1, s.MappingSize())
	assert.Equal(t, identity.MatchExact, s.LookupConfidence(ctx, "first.md").MatchKind)

	// Rebuilding with a new batch drops the old identifiers entirely.
	s.ResolveIdentity(ctx, []identity.ExternalRecord{
		{ExternalID: "second.md", RawScore: 10},
	})
	assert.Equal(t, 1, s.MappingSize())
	assert.Equal(t, identity.MatchNone, s.LookupConfidence(ctx, "first.md").MatchKind)
	assert.Equal(t, identity.MatchExact, s.LookupConfidence(ctx, "second.md").MatchKind)
}

func TestServiceResetAndStats(t *testing.T) {
	s, err := NewService()
	require.NoError(t, err)
	ctx := context.Background()

	s.ResolveIdentity(ctx, []identity.ExternalRecord{
		{ExternalID: "Report-Final.md", RawScore: 21.5},
	})
	s.LookupConfidence(ctx, "Report-Final.md") // exact
	s.LookupConfidence(ctx, "report-final")    // normalized
	s.LookupConfidence(ctx, "qqqq-6789")       // miss

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Exact)
	assert.Equal(t, uint64(1), stats.Normalized)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(3), stats.Total())

	s.Reset()
	assert.Equal(t, 0, s.MappingSize())
	assert.Equal(t, uint64(0), s.Stats().Total())
	assert.Equal(t, Unscored(), s.LookupConfidence(ctx, "Report-Final.md"))
}

func TestServiceNormalizeDirect(t *testing.T) {
	s, err := NewService()
	require.NoError(t, err)

	t.Run("empty method uses the service default", func(t *testing.T) {
		got := s.Normalize(21.5, "")
		assert.Equal(t, MethodPercentile, got.Method)
		assert.Equal(t, 50, got.Score)
	})

	t.Run("explicit method override", func(t *testing.T) {
		got := s.Normalize(45.0, MethodLinear)
		assert.Equal(t, MethodLinear, got.Method)
		assert.Equal(t, 100, got.Score)
	})

	t.Run("no identity involved", func(t *testing.T) {
		got := s.Normalize(10.0, MethodPercentile)
		assert.Equal(t, identity.MatchNone, got.MatchKind)
		assert.Empty(t, got.FileID)
	})
}
