package convergence

import (
	"fmt"
	"sort"
)

// ExtractMetrics derives per-file statistics from an analysis history.
//
// The history may arrive unsorted; it is re-sorted by timestamp ascending
// (stable, so equal timestamps keep their input order) without mutating the
// caller's slice. Fails with ErrInsufficientHistory when the history is
// shorter than cfg.MinIterations.
func ExtractMetrics(history []Iteration, cfg Config) (*DerivedMetrics, error) {
	n := len(history)
	if n < cfg.MinIterations {
		return nil, fmt.Errorf("%w: have %d iterations, need %d", ErrInsufficientHistory, n, cfg.MinIterations)
	}

	sorted := make([]Iteration, n)
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	confidences := make([]float64, n)
	labels := make([]string, n)
	categories := make([][]string, n)
	for i, it := range sorted {
		confidences[i] = it.Confidence
		labels[i] = it.Label
		categories[i] = it.Categories
	}

	window := cfg.StabilityWindow
	if window > n {
		window = n
	}
	recent := confidences[n-window:]

	deltas := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		deltas = append(deltas, confidences[i]-confidences[i-1])
	}

	modalLabel, modalCount := modal(labels)
	recentModalLabel, recentModalCount := modal(labels[n-window:])

	return &DerivedMetrics{
		Iterations:       n,
		Confidences:      confidences,
		Labels:           labels,
		Categories:       categories,
		Latest:           confidences[n-1],
		Mean:             mean(confidences),
		Variance:         populationVariance(confidences),
		RecentVariance:   populationVariance(recent),
		Window:           window,
		Deltas:           deltas,
		ModalLabel:       modalLabel,
		ModalCount:       modalCount,
		RecentModalLabel: recentModalLabel,
		RecentModalCount: recentModalCount,
		LastTimestamp:    sorted[n-1].Timestamp,
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// populationVariance divides by N, not N-1, matching the calibration data.
func populationVariance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

// modal returns the most frequent value and its count. Ties resolve to the
// value first seen in the input, keeping extraction deterministic.
func modal(values []string) (string, int) {
	if len(values) == 0 {
		return "", 0
	}
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))
	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	best, bestCount := "", 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best, bestCount
}
