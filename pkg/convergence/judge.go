package convergence

import "fmt"

// Calibrated decision thresholds. These were fitted against production
// analysis histories; do not tune them without new calibration data.
const (
	confidenceGate      = 0.70
	stabilityGate       = 0.50
	typeConsistencyGate = 0.60
	compositeGate       = 0.75

	// compositeTarget is the composite score at which a history converges
	// outright.
	compositeTarget = 0.85

	// Strong individual signals unlock the high-quality shortcut and the
	// schema-ready flag.
	strongConfidence      = 0.85
	strongStability       = 0.70
	strongTypeConsistency = 0.80
)

// Composite blends the component scores using w. The result is clamped
// to [0,1].
func Composite(c ComponentScores, w Weights) float64 {
	return clamp01(w.Confidence*c.Confidence +
		w.Stability*c.Stability +
		w.TypeConsistency*c.TypeConsistency +
		w.CategoryAlignment*c.CategoryAlignment +
		w.Improvement*c.Improvement)
}

// Judge classifies one evaluated history as converged or not.
//
// The classification is stateless: it is recomputed fresh from the component
// scores on every call. Hard gates come first: confidence below 0.70,
// stability below 0.50, type consistency below 0.60, or a composite below
// 0.75 always mean not converged. Past the gates, a history converges on a
// composite of at least 0.85, or on strong individual signals (confidence
// >= 0.85, stability >= 0.70, type consistency >= 0.80 together).
func Judge(fileID string, m *DerivedMetrics, comps ComponentScores, w Weights, cfg Config) *Result {
	composite := Composite(comps, w)

	gatesPass := comps.Confidence >= confidenceGate &&
		comps.Stability >= stabilityGate &&
		comps.TypeConsistency >= typeConsistencyGate &&
		composite >= compositeGate

	converged := false
	if gatesPass {
		strong := comps.Confidence >= strongConfidence &&
			comps.Stability >= strongStability &&
			comps.TypeConsistency >= strongTypeConsistency
		converged = composite >= compositeTarget || strong
	}

	schemaReady := comps.Confidence >= strongConfidence &&
		comps.TypeConsistency >= strongTypeConsistency &&
		m.Iterations >= cfg.MinIterations

	status := StatusNotConverged
	if converged {
		status = StatusConverged
	}

	return &Result{
		FileID:         fileID,
		Converged:      converged,
		Status:         status,
		CompositeScore: composite,
		Components:     comps,
		SchemaReady:    schemaReady,
		Recommendation: buildRecommendation(comps, composite, converged, schemaReady),
		Iterations:     m.Iterations,
		EvaluatedAt:    m.LastTimestamp,
	}
}

// buildRecommendation produces the ordered diagnostic strings surfaced to
// callers. The list is deterministic for a given set of scores and carries
// no control-flow significance.
func buildRecommendation(c ComponentScores, composite float64, converged, schemaReady bool) []string {
	var rec []string
	if c.Confidence < confidenceGate {
		rec = append(rec, fmt.Sprintf("confidence %.2f below required %.2f; run more analysis passes", c.Confidence, confidenceGate))
	}
	if c.Stability < stabilityGate {
		rec = append(rec, "confidence variance too high; results have not settled")
	}
	if c.TypeConsistency < typeConsistencyGate {
		rec = append(rec, "type label still changing between passes")
	}
	if composite < compositeGate {
		rec = append(rec, fmt.Sprintf("composite score %.2f below required %.2f", composite, compositeGate))
	}
	if !converged && len(rec) == 0 {
		rec = append(rec, fmt.Sprintf("near convergence: composite %.2f short of %.2f", composite, compositeTarget))
	}
	if converged {
		rec = append(rec, "classification stable; latest result can be trusted")
	}
	if schemaReady {
		rec = append(rec, "ready for structured export")
	}
	return rec
}
