// Package convergence decides whether repeated analysis passes over a file
// have stabilized enough to trust the latest classification.
//
// The analysis engine produces one Iteration per pass (a confidence, a type
// label, and suggested categories). This package reads the accumulated
// history and answers two questions: has the classification converged, and
// is it strong enough to gate structured export (schema readiness).
//
// # Pipeline
//
// Evaluation runs in three pure stages:
//   - ExtractMetrics turns a history into DerivedMetrics: mean and
//     population variance of confidences (overall and over the recent
//     stability window), per-step deltas, and the modal label.
//   - Component scorers map DerivedMetrics to five independent [0,1]
//     scores: confidence, stability, type consistency, category alignment,
//     and improvement.
//   - The judge combines the components into a weighted composite, applies
//     hard gates, and classifies the history as converged or not.
//
// Every stage is deterministic: the same history and configuration always
// produce the same result. Nothing here performs I/O.
//
// # Gates and shortcuts
//
// A history is never converged while confidence < 0.70, stability < 0.50,
// type consistency < 0.60, or the composite < 0.75. With gates passed,
// convergence requires a composite of at least 0.85, or the high-quality
// shortcut: confidence >= 0.85, stability >= 0.70, and type consistency
// >= 0.80 together. These thresholds are calibrated constants; changing
// them requires fresh calibration data, not taste.
//
// # Caching
//
// Results are memoized in a Cache keyed by (file ID, iteration count, last
// timestamp), so re-evaluating an unchanged history is a map lookup. The
// cache combines a TTL with LRU eviction; both bounds are configurable.
//
// # Concurrency
//
// Scorers and the judge are stateless and safe to call from any number of
// goroutines. The cache is the only shared mutable state and is guarded
// internally.
//
// # Usage
//
//	svc := convergence.NewService(
//	    convergence.WithCategorySource(registry),
//	    convergence.WithLogger(logger),
//	)
//
//	result, err := svc.Evaluate(ctx, "report-final.md", history)
//	if errors.Is(err, convergence.ErrInsufficientHistory) {
//	    // fewer than MinIterations passes; evaluate again later
//	}
//	if result.Converged {
//	    fmt.Printf("composite %.2f: %s\n", result.CompositeScore, result.Recommendation)
//	}
package convergence
