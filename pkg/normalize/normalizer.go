package normalize

import (
	"math"

	"github.com/chakssp/convergd/pkg/identity"
)

// Linear rescales a raw score proportionally across the calibrated range,
// clamped to [0, 100]. The ratio is computed before scaling so that
// Linear(Min) is exactly 0 and Linear(Max) is exactly 100.
func (c Calibration) Linear(raw float64) float64 {
	return clamp100((raw - c.Min) / (c.Max - c.Min) * 100)
}

// Percentile maps scores at or below the calibrated median onto [0, 50]
// and scores above it onto [50, 100], clamped. Percentile(Median) is
// exactly 50.
func (c Calibration) Percentile(raw float64) float64 {
	if raw <= c.Median {
		return clamp100(raw / c.Median * 50)
	}
	return clamp100(50 + (raw-c.Median)/(c.Max-c.Median)*50)
}

// Normalize rescales a raw external score with the given method and
// rounds it to the integer confidence domain. An unrecognized method
// falls back to Linear. MatchKind is left at None; the lookup pipeline
// fills it in when identity resolution is involved.
func (c Calibration) Normalize(raw float64, method Method) NormalizedConfidence {
	var value float64
	switch method {
	case MethodPercentile:
		value = c.Percentile(raw)
	case MethodLinear:
		value = c.Linear(raw)
	default:
		method = MethodLinear
		value = c.Linear(raw)
	}

	return NormalizedConfidence{
		Score:     int(math.Round(value)),
		RawScore:  raw,
		Method:    method,
		MatchKind: identity.MatchNone,
	}
}

// clamp100 bounds a value to [0, 100]. NaN (from a degenerate
// calibration fed a degenerate score) collapses to 0 rather than
// escaping to callers.
func clamp100(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
