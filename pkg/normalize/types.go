package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/chakssp/convergd/pkg/identity"
)

var (
	// ErrInvalidCalibration indicates a calibration range that cannot
	// anchor a normalization (max not above min, median outside the
	// range, or non-numeric values).
	ErrInvalidCalibration = errors.New("invalid calibration range")

	// ErrUnknownMethod indicates a normalization method name that is
	// neither "linear" nor "percentile".
	ErrUnknownMethod = errors.New("unknown normalization method")
)

// Method selects how a raw similarity score is rescaled to 0-100.
type Method string

const (
	// MethodLinear rescales proportionally across the calibrated range.
	MethodLinear Method = "linear"

	// MethodPercentile anchors the calibrated median at 50 and rescales
	// each half of the range independently.
	MethodPercentile Method = "percentile"
)

// ParseMethod converts a user-supplied method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(MethodLinear):
		return MethodLinear, nil
	case string(MethodPercentile):
		return MethodPercentile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Calibration is the empirical score range observed from the similarity
// search collaborator. The defaults come from production measurements;
// override them only with fresh calibration data.
type Calibration struct {
	// Min is the lowest raw score observed.
	Min float64 `json:"min" koanf:"min"`

	// Max is the highest raw score observed.
	Max float64 `json:"max" koanf:"max"`

	// Median is the median raw score, the 50-point anchor for the
	// percentile method.
	Median float64 `json:"median" koanf:"median"`
}

// DefaultCalibration returns the measured production range.
func DefaultCalibration() Calibration {
	return Calibration{
		Min:    0.1,
		Max:    45.0,
		Median: 21.5,
	}
}

// Validate checks that the calibration can anchor both methods.
func (c Calibration) Validate() error {
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) || math.IsNaN(c.Median) {
		return fmt.Errorf("%w: values must be numbers", ErrInvalidCalibration)
	}
	if c.Max <= c.Min {
		return fmt.Errorf("%w: max %g must exceed min %g", ErrInvalidCalibration, c.Max, c.Min)
	}
	if c.Median < c.Min || c.Median > c.Max {
		return fmt.Errorf("%w: median %g outside [%g, %g]", ErrInvalidCalibration, c.Median, c.Min, c.Max)
	}
	return nil
}

// NormalizedConfidence is one raw external score rescaled into the
// internal 0-100 confidence domain, annotated with how the record's
// identity was resolved so consumers can audit low-confidence fuzzy
// matches.
type NormalizedConfidence struct {
	// Score is the normalized confidence, an integer in [0, 100].
	Score int `json:"score"`

	// RawScore is the unmodified score from the external record.
	RawScore float64 `json:"raw_score"`

	// Method is the normalization method that produced Score.
	Method Method `json:"method"`

	// MatchKind records how the external identifier was resolved.
	MatchKind identity.MatchKind `json:"match_kind"`

	// FileID is the internal file the score was attached to. Empty when
	// identity resolution missed.
	FileID string `json:"file_id,omitempty"`

	// Similarity is the identity match similarity in [0, 1]. 1.0 for
	// exact and normalized matches.
	Similarity float64 `json:"similarity,omitempty"`
}

// Unscored is the fixed result for an unresolvable external identifier.
// "Not found" degrades to this default; it is never an error.
func Unscored() NormalizedConfidence {
	return NormalizedConfidence{
		Score:     0,
		Method:    MethodLinear,
		MatchKind: identity.MatchNone,
	}
}
