package convergence

import (
	"strings"

	"github.com/chakssp/convergd/pkg/identity"
)

// ComputeComponents runs the five component scorers against one set of
// derived metrics. manualCategories is the file's curated category list from
// the knowledge registry; it may be nil.
func ComputeComponents(m *DerivedMetrics, manualCategories []string, cfg Config) ComponentScores {
	return ComponentScores{
		Confidence:        ScoreConfidence(m, cfg.MinConfidence),
		Stability:         ScoreStability(m, cfg.MaxVariance),
		TypeConsistency:   ScoreTypeConsistency(m),
		CategoryAlignment: ScoreCategoryAlignment(m, manualCategories),
		Improvement:       ScoreImprovement(m),
	}
}

// ScoreConfidence blends the latest confidence (weight 0.7) and the mean
// confidence (weight 0.3), each measured as a capped ratio against the
// minConfidence threshold.
func ScoreConfidence(m *DerivedMetrics, minConfidence float64) float64 {
	latest := m.Latest / minConfidence
	if latest > 1 {
		latest = 1
	}
	avg := m.Mean / minConfidence
	if avg > 1 {
		avg = 1
	}
	return clamp01(0.7*latest + 0.3*avg)
}

// ScoreStability rewards low confidence variance. Recent variance carries
// the highest weight (0.5), overall variance is judged against a doubled
// budget (0.3), and the remaining 0.2 follows the improvement trend so a
// steadily climbing history is not punished for moving.
func ScoreStability(m *DerivedMetrics, maxVariance float64) float64 {
	recent := clamp01(1 - m.RecentVariance/maxVariance)
	overall := clamp01(1 - m.Variance/(2*maxVariance))
	trend := improvementTrend(m.Deltas)
	return clamp01(0.5*recent + 0.3*overall + 0.2*trend)
}

// ScoreTypeConsistency measures agreement on the modal label: 0.4 for
// agreement across the whole history, 0.6 for agreement inside the recent
// window. Late-iteration agreement matters more than early noise.
func ScoreTypeConsistency(m *DerivedMetrics) float64 {
	if m.Iterations == 0 || m.Window == 0 {
		return 0
	}
	overall := float64(m.ModalCount) / float64(m.Iterations)
	recent := float64(m.RecentModalCount) / float64(m.Window)
	return clamp01(0.4*overall + 0.6*recent)
}

// ScoreCategoryAlignment compares each iteration's suggested categories
// against the file's manually curated set. Per-iteration overlap ratio is
// overlap / max(|suggested|, |manual|); the final score weighs the recent
// window's average at 0.7 and the overall average at 0.3.
//
// Returns exactly 0.5 when the file has no manual categories: absence of
// curation must neither penalize nor reward convergence.
func ScoreCategoryAlignment(m *DerivedMetrics, manualCategories []string) float64 {
	manual := normalizeCategorySet(manualCategories)
	if len(manual) == 0 {
		return 0.5
	}

	ratios := make([]float64, m.Iterations)
	for i, suggested := range m.Categories {
		ratios[i] = categoryOverlap(normalizeCategorySet(suggested), manual)
	}

	recent := ratios[m.Iterations-m.Window:]
	return clamp01(0.7*mean(recent) + 0.3*mean(ratios))
}

// ScoreImprovement rewards positive confidence movement: 0.4 for the fitted
// trend of the per-step deltas, 0.6 for the fraction of deltas that are
// strictly positive. Neutral 0.5 with fewer than two deltas.
func ScoreImprovement(m *DerivedMetrics) float64 {
	if len(m.Deltas) < 2 {
		return 0.5
	}
	positive := 0
	for _, d := range m.Deltas {
		if d > 0 {
			positive++
		}
	}
	posFraction := float64(positive) / float64(len(m.Deltas))
	return clamp01(0.4*improvementTrend(m.Deltas) + 0.6*posFraction)
}

// improvementTrend maps the least-squares slope of the delta sequence into
// [0,1] via 0.5 + 10*slope. Neutral 0.5 with fewer than two deltas.
func improvementTrend(deltas []float64) float64 {
	if len(deltas) < 2 {
		return 0.5
	}
	return clamp01(0.5 + 10*leastSquaresSlope(deltas))
}

// leastSquaresSlope fits y = a + b*x over x = 0..n-1 and returns b.
func leastSquaresSlope(y []float64) float64 {
	n := len(y)
	meanX := float64(n-1) / 2
	meanY := mean(y)
	var num, den float64
	for i, v := range y {
		dx := float64(i) - meanX
		num += dx * (v - meanY)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// normalizeCategorySet lower-cases, trims, and de-duplicates a category
// list, preserving first-seen order.
func normalizeCategorySet(categories []string) []string {
	if len(categories) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// categoryOverlap counts suggested categories with a manual counterpart and
// divides by the larger set size. Both inputs are normalized sets.
func categoryOverlap(suggested, manual []string) float64 {
	if len(suggested) == 0 && len(manual) == 0 {
		return 0
	}
	overlap := 0
	for _, s := range suggested {
		for _, m := range manual {
			if categoriesMatch(s, m) {
				overlap++
				break
			}
		}
	}
	max := len(suggested)
	if len(manual) > max {
		max = len(manual)
	}
	return clamp01(float64(overlap) / float64(max))
}

// categoriesMatch reports whether two normalized category names refer to the
// same category: equality, substring containment, or edit-distance
// similarity of at least 0.8.
func categoriesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return identity.EditSimilarity(a, b) >= 0.8
}
