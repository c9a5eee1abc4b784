package identity

// MatchKind classifies how an external identifier was resolved.
type MatchKind string

const (
	// MatchExact indicates the query hit a registered key verbatim.
	MatchExact MatchKind = "exact"

	// MatchNormalized indicates the query matched after case folding,
	// extension stripping, or path-basename normalization.
	MatchNormalized MatchKind = "normalized_case_insensitive"

	// MatchFuzzyJaccard indicates a character-set similarity match.
	MatchFuzzyJaccard MatchKind = "fuzzy_jaccard"

	// MatchFuzzyEdit indicates a normalized edit-distance match.
	MatchFuzzyEdit MatchKind = "fuzzy_edit_distance"

	// MatchNone indicates no registered key cleared the fuzzy threshold.
	MatchNone MatchKind = "none"
)

// ExternalRecord is one record from the similarity search collaborator.
// The payload carries whatever identifying fields the collaborator stored
// (file names, paths, titles); the resolver mines it for candidates.
type ExternalRecord struct {
	// ExternalID is the collaborator's identifier for the record.
	ExternalID string `json:"external_id"`

	// RawScore is the collaborator's raw similarity score for the record.
	RawScore float64 `json:"raw_score"`

	// Payload holds the record's stored fields, read-only to the resolver.
	Payload map[string]any `json:"payload,omitempty"`
}

// Match is the outcome of one identity lookup.
type Match struct {
	// FileID is the internal file identifier the query resolved to.
	// Empty when Kind is MatchNone.
	FileID string `json:"file_id,omitempty"`

	// Key is the registered candidate key that matched.
	Key string `json:"key,omitempty"`

	// Kind reports the resolution mechanism, so downstream consumers can
	// audit low-confidence fuzzy matches.
	Kind MatchKind `json:"kind"`

	// Similarity is 1.0 for exact and normalized matches, the winning
	// similarity for fuzzy matches, and 0 for no match.
	Similarity float64 `json:"similarity"`

	// Record is the external record behind the matched key; nil when
	// nothing matched.
	Record *ExternalRecord `json:"-"`
}

// Found reports whether the lookup resolved to a record.
func (m Match) Found() bool {
	return m.Kind != MatchNone && m.Kind != ""
}

// NoMatch is the canonical "unscored" result.
func NoMatch() Match {
	return Match{Kind: MatchNone}
}

// LookupStats counts lookups by resolution mechanism. All counts are
// cumulative since the resolver was created or last reset.
type LookupStats struct {
	Exact        uint64 `json:"exact"`
	Normalized   uint64 `json:"normalized"`
	FuzzyJaccard uint64 `json:"fuzzy_jaccard"`
	FuzzyEdit    uint64 `json:"fuzzy_edit_distance"`
	Misses       uint64 `json:"misses"`
}

// Total returns the total number of lookups recorded.
func (s LookupStats) Total() uint64 {
	return s.Exact + s.Normalized + s.FuzzyJaccard + s.FuzzyEdit + s.Misses
}
