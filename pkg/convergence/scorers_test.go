package convergence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreConfidence(t *testing.T) {
	tests := []struct {
		name   string
		latest float64
		mean   float64
		want   float64
	}{
		{name: "both above threshold cap at 1", latest: 0.9, mean: 0.88, want: 1.0},
		{name: "latest capped mean ratioed", latest: 0.9, mean: 0.75, want: 0.7 + 0.3*(0.75/0.85)},
		{name: "both below threshold", latest: 0.35, mean: 0.325, want: 0.7*(0.35/0.85) + 0.3*(0.325/0.85)},
		{name: "zero history", latest: 0, mean: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &DerivedMetrics{Latest: tt.latest, Mean: tt.mean}
			assert.InDelta(t, tt.want, ScoreConfidence(m, 0.85), 1e-12)
		})
	}
}

func TestScoreStability(t *testing.T) {
	t.Run("perfectly flat history", func(t *testing.T) {
		m := &DerivedMetrics{Variance: 0, RecentVariance: 0}
		// 0.5*1 + 0.3*1 + 0.2*neutral trend.
		assert.InDelta(t, 0.9, ScoreStability(m, 0.05), 1e-12)
	})

	t.Run("variance at the budget floors both terms", func(t *testing.T) {
		m := &DerivedMetrics{Variance: 0.1, RecentVariance: 0.05}
		// Only the neutral trend term remains.
		assert.InDelta(t, 0.1, ScoreStability(m, 0.05), 1e-12)
	})

	t.Run("accelerating deltas lift the trend term", func(t *testing.T) {
		flat := &DerivedMetrics{Deltas: []float64{0.1, 0.1, 0.1}}
		rising := &DerivedMetrics{Deltas: []float64{0.0, 0.1, 0.2}}
		assert.Greater(t, ScoreStability(rising, 0.05), ScoreStability(flat, 0.05))
	})

	t.Run("steady climb", func(t *testing.T) {
		// Confidences 0.6/0.75/0.9: variance 0.015, flat deltas.
		m := &DerivedMetrics{Variance: 0.015, RecentVariance: 0.015, Deltas: []float64{0.15, 0.15}}
		assert.InDelta(t, 0.705, ScoreStability(m, 0.05), 1e-12)
	})
}

func TestScoreTypeConsistency(t *testing.T) {
	tests := []struct {
		name string
		m    DerivedMetrics
		want float64
	}{
		{
			name: "unanimous",
			m:    DerivedMetrics{Iterations: 3, Window: 3, ModalCount: 3, RecentModalCount: 3},
			want: 1.0,
		},
		{
			name: "split labels",
			m:    DerivedMetrics{Iterations: 2, Window: 2, ModalCount: 1, RecentModalCount: 1},
			want: 0.5,
		},
		{
			name: "early noise settled late",
			m:    DerivedMetrics{Iterations: 5, Window: 3, ModalCount: 4, RecentModalCount: 3},
			want: 0.4*(4.0/5.0) + 0.6,
		},
		{
			name: "empty metrics",
			m:    DerivedMetrics{},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreTypeConsistency(&tt.m), 1e-12)
		})
	}
}

func TestScoreCategoryAlignment(t *testing.T) {
	t.Run("no manual categories is exactly neutral", func(t *testing.T) {
		m := &DerivedMetrics{
			Iterations: 2,
			Window:     2,
			Categories: [][]string{{"ai", "research"}, {"ai"}},
		}
		assert.Equal(t, 0.5, ScoreCategoryAlignment(m, nil))
		assert.Equal(t, 0.5, ScoreCategoryAlignment(m, []string{}))
		// Whitespace-only entries normalize away to nothing.
		assert.Equal(t, 0.5, ScoreCategoryAlignment(m, []string{"  ", ""}))
	})

	t.Run("perfect overlap ignores case and duplicates", func(t *testing.T) {
		m := &DerivedMetrics{
			Iterations: 3,
			Window:     3,
			Categories: [][]string{
				{"AI", "Research"},
				{"ai", "research", "research"},
				{"Ai", "RESEARCH"},
			},
		}
		assert.InDelta(t, 1.0, ScoreCategoryAlignment(m, []string{"ai", "research"}), 1e-12)
	})

	t.Run("partial overlap against larger manual set", func(t *testing.T) {
		m := &DerivedMetrics{
			Iterations: 2,
			Window:     2,
			Categories: [][]string{{"ai"}, {"ai"}},
		}
		// overlap 1 / max(1, 2) per iteration.
		assert.InDelta(t, 0.5, ScoreCategoryAlignment(m, []string{"ai", "ml"}), 1e-12)
	})

	t.Run("recent iterations weigh more", func(t *testing.T) {
		m := &DerivedMetrics{
			Iterations: 4,
			Window:     3,
			Categories: [][]string{{"off-topic"}, {"ai"}, {"ai"}, {"ai"}},
		}
		// Recent window aligned perfectly, overall average 3/4.
		want := 0.7*1.0 + 0.3*0.75
		assert.InDelta(t, want, ScoreCategoryAlignment(m, []string{"ai"}), 1e-12)
	})

	t.Run("empty suggestion rounds score down", func(t *testing.T) {
		m := &DerivedMetrics{
			Iterations: 2,
			Window:     2,
			Categories: [][]string{nil, {"ai"}},
		}
		// First iteration contributes 0, second 1.
		assert.InDelta(t, 0.5, ScoreCategoryAlignment(m, []string{"ai"}), 1e-12)
	})
}

func TestCategoriesMatch(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal", a: "research", b: "research", want: true},
		{name: "substring containment", a: "tech", b: "technical", want: true},
		{name: "reverse containment", a: "technical", b: "tech", want: true},
		{name: "edit similarity at boundary", a: "abcde", b: "abcdx", want: true}, // 0.8 exactly
		{name: "edit similarity below boundary", a: "abcd", b: "abxy", want: false},
		{name: "unrelated", a: "finance", b: "biology", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, categoriesMatch(tt.a, tt.b))
		})
	}
}

func TestScoreImprovement(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   float64
	}{
		{name: "no deltas is neutral", deltas: nil, want: 0.5},
		{name: "one delta is neutral", deltas: []float64{0.1}, want: 0.5},
		{name: "steady positive movement", deltas: []float64{0.15, 0.15}, want: 0.4*0.5 + 0.6*1.0},
		{name: "steady decline", deltas: []float64{-0.1, -0.1, -0.1}, want: 0.4*0.5 + 0.6*0},
		{name: "accelerating", deltas: []float64{0.0, 0.2}, want: 0.4*1.0 + 0.6*0.5},
		{name: "zero deltas are not positive", deltas: []float64{0, 0}, want: 0.4*0.5 + 0.6*0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &DerivedMetrics{Deltas: tt.deltas}
			assert.InDelta(t, tt.want, ScoreImprovement(m), 1e-12)
		})
	}
}

func TestLeastSquaresSlope(t *testing.T) {
	assert.Equal(t, 0.0, leastSquaresSlope([]float64{1}))
	assert.InDelta(t, 1.0, leastSquaresSlope([]float64{0, 1, 2}), 1e-12)
	assert.InDelta(t, 0.0, leastSquaresSlope([]float64{5, 5, 5}), 1e-12)
	assert.InDelta(t, -0.5, leastSquaresSlope([]float64{1, 0.5, 0}), 1e-12)
}

func TestNormalizeCategorySet(t *testing.T) {
	assert.Nil(t, normalizeCategorySet(nil))
	assert.Equal(t, []string{"ai", "research"}, normalizeCategorySet([]string{" AI ", "Research", "ai", ""}))
}

func TestComputeComponents(t *testing.T) {
	history := buildHistory(
		[]float64{0.6, 0.75, 0.9},
		[]string{"technical_insight"},
		[][]string{{"ai", "research"}},
	)
	m, err := ExtractMetrics(history, DefaultConfig())
	require.NoError(t, err)

	c := ComputeComponents(m, []string{"ai", "research"}, DefaultConfig())

	assert.InDelta(t, 0.7+0.3*(0.75/0.85), c.Confidence, 1e-12)
	assert.InDelta(t, 0.705, c.Stability, 1e-9)
	assert.InDelta(t, 1.0, c.TypeConsistency, 1e-12)
	assert.InDelta(t, 1.0, c.CategoryAlignment, 1e-12)
	assert.InDelta(t, 0.8, c.Improvement, 1e-12)
}

func TestScorersStayInRange(t *testing.T) {
	// Adversarial metrics: every scorer must clamp into [0,1].
	wild := []*DerivedMetrics{
		{Latest: 5, Mean: -3, Variance: -0.2, RecentVariance: 9, Iterations: 3, Window: 3, ModalCount: 3, RecentModalCount: 3, Deltas: []float64{9, -9, 9}},
		{Latest: -1, Mean: 2, Variance: 100, RecentVariance: -5, Iterations: 1, Window: 1, ModalCount: 1, RecentModalCount: 1, Deltas: []float64{-100, 100}},
		{},
	}
	for _, m := range wild {
		for name, score := range map[string]float64{
			"confidence":  ScoreConfidence(m, 0.85),
			"stability":   ScoreStability(m, 0.05),
			"consistency": ScoreTypeConsistency(m),
			"improvement": ScoreImprovement(m),
		} {
			assert.GreaterOrEqual(t, score, 0.0, name)
			assert.LessOrEqual(t, score, 1.0, name)
		}
	}
}
