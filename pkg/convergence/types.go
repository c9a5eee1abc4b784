package convergence

import (
	"errors"
	"fmt"
	"time"
)

// Common errors for convergence operations.
var (
	// ErrInsufficientHistory indicates the history has fewer iterations than
	// the configured minimum. Callers should treat this as "not yet
	// evaluable" and retry after more analysis passes, not as a failure.
	ErrInsufficientHistory = errors.New("insufficient analysis history")

	// ErrInvalidWeights indicates composite weights that sum to zero or
	// contain negative values.
	ErrInvalidWeights = errors.New("invalid composite weights")

	// ErrEmptyFileID indicates a missing file identifier.
	ErrEmptyFileID = errors.New("file ID cannot be empty")

	// ErrInvalidConfidence indicates an iteration confidence outside [0,1].
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")

	// ErrEmptyLabel indicates an iteration without a type label.
	ErrEmptyLabel = errors.New("iteration label cannot be empty")
)

// Status is the two-state convergence classification.
type Status string

const (
	// StatusConverged indicates repeated analysis has stabilized and the
	// latest classification can be trusted.
	StatusConverged Status = "converged"

	// StatusNotConverged indicates the classification is still moving or
	// too weak to trust.
	StatusNotConverged Status = "not_converged"
)

// Iteration is one analysis pass over a file.
//
// Iterations are immutable once created and appended to a per-file history
// owned by the caller. The engine only reads them.
type Iteration struct {
	// Confidence is the raw analysis confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Label is the type classification produced by the pass
	// (e.g. "technical_insight", "decisive_moment").
	Label string `json:"label"`

	// Categories are the categories the pass suggested for the file.
	// Treated as a set; order and duplicates are ignored.
	Categories []string `json:"categories,omitempty"`

	// Timestamp is when the pass completed. Histories are re-sorted by this
	// field before any metric is derived, so callers may append out of
	// order.
	Timestamp time.Time `json:"timestamp"`
}

// NewIteration creates a validated iteration.
func NewIteration(confidence float64, label string, categories []string, ts time.Time) (*Iteration, error) {
	if confidence < 0.0 || confidence > 1.0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidConfidence, confidence)
	}
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Iteration{
		Confidence: confidence,
		Label:      label,
		Categories: categories,
		Timestamp:  ts,
	}, nil
}

// DerivedMetrics are the per-call statistics computed from one history.
//
// All fields are pure functions of the input history and the stability
// window; they carry no hidden state.
type DerivedMetrics struct {
	// Iterations is the number of analysis passes.
	Iterations int

	// Confidences holds the per-iteration confidences in timestamp order.
	Confidences []float64

	// Labels holds the per-iteration type labels in timestamp order.
	Labels []string

	// Categories holds the per-iteration suggested categories.
	Categories [][]string

	// Latest is the confidence of the most recent iteration.
	Latest float64

	// Mean is the arithmetic mean of all confidences.
	Mean float64

	// Variance is the population variance of all confidences.
	Variance float64

	// RecentVariance is the population variance over the stability window
	// (the last Window iterations).
	RecentVariance float64

	// Window is the effective stability window size: the configured window
	// capped at the iteration count.
	Window int

	// Deltas are the per-step confidence changes,
	// Confidences[i] - Confidences[i-1].
	Deltas []float64

	// ModalLabel is the most frequent label across the whole history.
	// Ties resolve to the label seen earliest.
	ModalLabel string

	// ModalCount is how many iterations carry ModalLabel.
	ModalCount int

	// RecentModalLabel is the most frequent label inside the window.
	RecentModalLabel string

	// RecentModalCount is how many window iterations carry RecentModalLabel.
	RecentModalCount int

	// LastTimestamp is the timestamp of the newest iteration. It doubles as
	// the history fingerprint component used by the cache.
	LastTimestamp time.Time
}

// ComponentScores are the five independent convergence signals, each in [0,1].
type ComponentScores struct {
	// Confidence blends the latest and mean confidences against the
	// configured threshold.
	Confidence float64 `json:"confidence"`

	// Stability rewards low confidence variance, recent variance weighted
	// highest.
	Stability float64 `json:"stability"`

	// TypeConsistency measures agreement on the modal label, recent
	// agreement weighted highest.
	TypeConsistency float64 `json:"type_consistency"`

	// CategoryAlignment measures overlap between suggested and manually
	// curated categories. Exactly 0.5 when the file has no curation.
	CategoryAlignment float64 `json:"category_alignment"`

	// Improvement rewards a positive confidence trend across passes.
	Improvement float64 `json:"improvement"`
}

// Weights are the composite blend weights for the five components.
//
// Weights are an immutable value type: construct via NewWeights (which
// validates and renormalizes) or use DefaultWeights. They are never mutated
// after construction.
type Weights struct {
	Confidence        float64 `json:"confidence" koanf:"confidence"`
	Stability         float64 `json:"stability" koanf:"stability"`
	TypeConsistency   float64 `json:"type_consistency" koanf:"type_consistency"`
	CategoryAlignment float64 `json:"category_alignment" koanf:"category_alignment"`
	Improvement       float64 `json:"improvement" koanf:"improvement"`
}

// DefaultWeights returns the calibrated default blend:
// confidence 0.30, stability 0.25, type consistency 0.20,
// category alignment 0.15, improvement 0.10.
func DefaultWeights() Weights {
	return Weights{
		Confidence:        0.30,
		Stability:         0.25,
		TypeConsistency:   0.20,
		CategoryAlignment: 0.15,
		Improvement:       0.10,
	}
}

// NewWeights validates w and returns a copy renormalized to sum to 1.
//
// Negative components or a non-positive sum return ErrInvalidWeights.
func NewWeights(w Weights) (Weights, error) {
	if w.Confidence < 0 || w.Stability < 0 || w.TypeConsistency < 0 ||
		w.CategoryAlignment < 0 || w.Improvement < 0 {
		return Weights{}, fmt.Errorf("%w: negative component", ErrInvalidWeights)
	}
	sum := w.sum()
	if sum <= 0 {
		return Weights{}, fmt.Errorf("%w: sum must be positive, got %v", ErrInvalidWeights, sum)
	}
	return Weights{
		Confidence:        w.Confidence / sum,
		Stability:         w.Stability / sum,
		TypeConsistency:   w.TypeConsistency / sum,
		CategoryAlignment: w.CategoryAlignment / sum,
		Improvement:       w.Improvement / sum,
	}, nil
}

func (w Weights) sum() float64 {
	return w.Confidence + w.Stability + w.TypeConsistency + w.CategoryAlignment + w.Improvement
}

// Config holds the tunable evaluation parameters.
//
// The convergence gates themselves (0.70/0.50/0.60/0.75 and the 0.85
// composite target) are calibrated constants, not configuration.
type Config struct {
	// MinIterations is the minimum history length before evaluation is
	// possible. Below it Evaluate fails with ErrInsufficientHistory.
	MinIterations int `json:"min_iterations" koanf:"min_iterations"`

	// StabilityWindow is how many recent iterations feed the "recent"
	// variance and consistency calculations.
	StabilityWindow int `json:"stability_window" koanf:"stability_window"`

	// MinConfidence is the confidence threshold the confidence scorer
	// measures against.
	MinConfidence float64 `json:"min_confidence" koanf:"min_confidence"`

	// MaxVariance is the variance considered fully unstable by the
	// stability scorer.
	MaxVariance float64 `json:"max_variance" koanf:"max_variance"`
}

// DefaultConfig returns the calibrated evaluation defaults.
func DefaultConfig() Config {
	return Config{
		MinIterations:   2,
		StabilityWindow: 3,
		MinConfidence:   0.85,
		MaxVariance:     0.05,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MinIterations < 1 {
		return errors.New("min_iterations must be at least 1")
	}
	if c.StabilityWindow < 1 {
		return errors.New("stability_window must be at least 1")
	}
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		return errors.New("min_confidence must be in (0,1]")
	}
	if c.MaxVariance <= 0 {
		return errors.New("max_variance must be positive")
	}
	return nil
}

// Result is the cached output of one convergence evaluation.
type Result struct {
	// FileID identifies the evaluated file.
	FileID string `json:"file_id"`

	// Converged reports the two-state classification.
	Converged bool `json:"converged"`

	// Status mirrors Converged as a string for logs, events, and metrics.
	Status Status `json:"status"`

	// CompositeScore is the weighted combination of the components, in [0,1].
	CompositeScore float64 `json:"composite_score"`

	// Components are the five individual scores.
	Components ComponentScores `json:"components"`

	// SchemaReady gates downstream structured export. Stricter than
	// convergence: confidence >= 0.85, type consistency >= 0.80, and at
	// least MinIterations passes.
	SchemaReady bool `json:"schema_ready"`

	// Recommendation is an ordered list of diagnostic strings describing
	// which thresholds passed or failed. Informational only.
	Recommendation []string `json:"recommendation,omitempty"`

	// Iterations is the evaluated history length.
	Iterations int `json:"iterations"`

	// EvaluatedAt is the timestamp of the newest iteration in the evaluated
	// history. Derived from the input so identical histories produce
	// identical results.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// clamp01 bounds v to [0,1]. NaN collapses to 0.
func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
