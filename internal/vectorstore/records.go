package vectorstore

import (
	"github.com/chakssp/convergd/pkg/identity"
)

// rawScoreFields are the payload fields carrying the collaborating
// application's raw relevance score, in priority order.
var rawScoreFields = []string{"relevanceScore", "relevance_score", "score"}

// ExternalRecords converts search results into the records the identity
// resolver consumes. The raw score comes from the payload's relevance
// field when present; otherwise the similarity score stands in so the
// record still normalizes instead of dropping out.
func ExternalRecords(results []SearchResult) []identity.ExternalRecord {
	records := make([]identity.ExternalRecord, 0, len(results))
	for _, res := range results {
		records = append(records, identity.ExternalRecord{
			ExternalID: res.ID,
			RawScore:   rawScore(res),
			Payload:    res.Metadata,
		})
	}
	return records
}

func rawScore(res SearchResult) float64 {
	for _, field := range rawScoreFields {
		if v, ok := res.Metadata[field]; ok {
			if f, ok := asFloat(v); ok {
				return f
			}
		}
	}
	return float64(res.Score)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
