package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "report.md", b: "report.md", want: 1.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "", b: "x", want: 0.0},
		{name: "classic kitten sitting", a: "kitten", b: "sitting", want: 1.0 - 3.0/7.0},
		{name: "single substitution", a: "notes", b: "nodes", want: 1.0 - 1.0/5.0},
		{name: "case sensitive", a: "Report", b: "report", want: 1.0 - 1.0/6.0},
		{name: "completely different", a: "abc", b: "xyz", want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EditSimilarity(tt.a, tt.b), 1e-12)
			// Symmetric in its arguments.
			assert.InDelta(t, tt.want, EditSimilarity(tt.b, tt.a), 1e-12)
		})
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "plan.md", b: "plan.md", want: 1.0},
		{name: "same set different order", a: "abc", b: "cba", want: 1.0},
		{name: "repeated runes collapse", a: "aab", b: "ab", want: 1.0},
		{name: "half overlap", a: "abc", b: "abd", want: 0.5},
		{name: "disjoint", a: "abc", b: "xyz", want: 0.0},
		{name: "both empty", a: "", b: "", want: 1.0},
		{name: "one empty", a: "abc", b: "", want: 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaccardSimilarity(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.want, JaccardSimilarity(tt.b, tt.a), 1e-12)
		})
	}
}

func TestSimilarityRange(t *testing.T) {
	// Every pair stays inside [0, 1].
	samples := []string{"", "a", "report-final.md", "Architecture_Notes", "zzzz", "プラン.md"}
	for _, a := range samples {
		for _, b := range samples {
			edit := EditSimilarity(a, b)
			jaccard := JaccardSimilarity(a, b)
			assert.GreaterOrEqual(t, edit, 0.0)
			assert.LessOrEqual(t, edit, 1.0)
			assert.GreaterOrEqual(t, jaccard, 0.0)
			assert.LessOrEqual(t, jaccard, 1.0)
		}
	}
}
