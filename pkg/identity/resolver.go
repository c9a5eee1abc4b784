package identity

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// fuzzyThreshold is the minimum similarity a fuzzy candidate must clear.
// Calibrated against production record linkage; preserve as-is.
const fuzzyThreshold = 0.6

// Payload fields mined for identifier candidates, in priority order.
// Collaborators disagree on casing, so common variants are listed.
var (
	payloadIDFields       = []string{"id", "externalId", "external_id"}
	payloadFilenameFields = []string{"fileName", "filename", "file_name", "name", "file", "sourceFile", "source_file"}
	payloadPathFields     = []string{"filePath", "file_path", "path"}
	payloadTitleFields    = []string{"title"}
)

type recordRef struct {
	fileID string
	record ExternalRecord
	order  int
}

type normRef struct {
	raw string
	ref *recordRef
}

type fuzzyKey struct {
	raw   string
	lower string
	base  string
	noExt string
	ref   *recordRef
}

// Mapping is an immutable identity table built from one batch of external
// records. Safe for concurrent lookups once built.
type Mapping struct {
	exact      map[string]*recordRef
	normalized map[string]normRef
	ordered    []fuzzyKey
	records    int
}

// BuildMapping indexes a batch of external records for identity lookups.
//
// For every record it collects candidate keys from a fixed priority list
// (direct id, filename, path, title) and registers each candidate plus its
// lower-cased, extension-stripped, and basename variants. Earlier records
// win key collisions, which also fixes fuzzy tie-breaking order.
func BuildMapping(records []ExternalRecord) *Mapping {
	m := &Mapping{
		exact:      make(map[string]*recordRef),
		normalized: make(map[string]normRef),
		records:    len(records),
	}

	for i := range records {
		rec := records[i]
		ref := &recordRef{
			fileID: internalFileID(rec),
			record: rec,
			order:  i,
		}
		seen := make(map[string]struct{})
		for _, key := range candidateKeys(rec) {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			m.register(key, ref)
		}
	}
	return m
}

func (m *Mapping) register(key string, ref *recordRef) {
	if _, exists := m.exact[key]; !exists {
		m.exact[key] = ref

		lower := strings.ToLower(key)
		base := pathBase(lower)
		m.ordered = append(m.ordered, fuzzyKey{
			raw:   key,
			lower: lower,
			base:  base,
			noExt: stripExt(base),
			ref:   ref,
		})
	}

	for _, variant := range normalizedVariants(key) {
		if _, exists := m.normalized[variant]; !exists {
			m.normalized[variant] = normRef{raw: key, ref: ref}
		}
	}
}

// Lookup resolves a query against the mapping: exact key first, then the
// case/path-normalized variants, then a fuzzy scan over all registered
// keys. The fuzzy scan scores each key by basename equality, extension-
// stripped equality, Jaccard character-set similarity, and normalized edit
// distance; the highest similarity at or above the threshold wins, with
// ties going to the earlier-registered key. Returns NoMatch when nothing
// clears the threshold.
func (m *Mapping) Lookup(query string) Match {
	if query == "" {
		return NoMatch()
	}

	if ref, ok := m.exact[query]; ok {
		return Match{
			FileID:     ref.fileID,
			Key:        query,
			Kind:       MatchExact,
			Similarity: 1.0,
			Record:     &ref.record,
		}
	}

	lower := strings.ToLower(query)
	if nr, ok := m.normalized[lower]; ok {
		return Match{
			FileID:     nr.ref.fileID,
			Key:        nr.raw,
			Kind:       MatchNormalized,
			Similarity: 1.0,
			Record:     &nr.ref.record,
		}
	}

	return m.fuzzyLookup(lower)
}

func (m *Mapping) fuzzyLookup(lower string) Match {
	queryBase := pathBase(lower)
	queryNoExt := stripExt(queryBase)

	var best Match
	for _, key := range m.ordered {
		var sim float64
		var kind MatchKind

		switch {
		case key.base == queryBase:
			sim, kind = 1.0, MatchNormalized
		case key.noExt != "" && key.noExt == queryNoExt:
			sim, kind = 1.0, MatchNormalized
		default:
			jaccard := JaccardSimilarity(lower, key.lower)
			edit := EditSimilarity(lower, key.lower)
			if jaccard >= edit {
				sim, kind = jaccard, MatchFuzzyJaccard
			} else {
				sim, kind = edit, MatchFuzzyEdit
			}
		}

		// Strict greater-than keeps the earlier-registered key on ties.
		if sim > best.Similarity {
			best = Match{
				FileID:     key.ref.fileID,
				Key:        key.raw,
				Kind:       kind,
				Similarity: sim,
				Record:     &key.ref.record,
			}
		}
	}

	if best.Similarity < fuzzyThreshold {
		return NoMatch()
	}
	return best
}

// Len returns the number of records indexed.
func (m *Mapping) Len() int {
	return m.records
}

// KeyCount returns the number of distinct registered keys.
func (m *Mapping) KeyCount() int {
	return len(m.ordered)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger supplies a structured logger. Defaults to a nop logger.
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// Resolver owns the current identity mapping for a collaborator session.
//
// Resolve replaces the whole mapping atomically; Lookup reads it under a
// shared lock, so any number of goroutines may resolve identifiers while a
// rebuild is in flight. The mapping never expires on its own; only an
// explicit Resolve or Reset changes it.
type Resolver struct {
	mu      sync.RWMutex
	mapping *Mapping

	statsMu sync.Mutex
	stats   LookupStats

	logger *zap.Logger
}

// NewResolver creates an empty resolver. Lookups against an empty resolver
// return NoMatch, never an error.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve builds the identity mapping for a batch of external records and
// installs it, replacing any prior mapping. Idempotent for identical input.
func (r *Resolver) Resolve(records []ExternalRecord) *Mapping {
	mapping := BuildMapping(records)

	r.mu.Lock()
	r.mapping = mapping
	r.mu.Unlock()

	r.logger.Debug("identity mapping rebuilt",
		zap.Int("records", mapping.Len()),
		zap.Int("keys", mapping.KeyCount()))
	return mapping
}

// Lookup resolves an external identifier against the current mapping.
// Returns NoMatch when the resolver is empty or nothing clears the fuzzy
// threshold; "not found" is a degraded result here, never an error.
func (r *Resolver) Lookup(externalID string) Match {
	r.mu.RLock()
	mapping := r.mapping
	r.mu.RUnlock()

	var match Match
	if mapping == nil {
		match = NoMatch()
	} else {
		match = mapping.Lookup(externalID)
	}

	r.recordStat(match.Kind)
	return match
}

// Reset discards the current mapping and lookup statistics.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.mapping = nil
	r.mu.Unlock()

	r.statsMu.Lock()
	r.stats = LookupStats{}
	r.statsMu.Unlock()
}

// Stats returns a snapshot of the lookup counters.
func (r *Resolver) Stats() LookupStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// MappingSize returns the number of records in the current mapping.
func (r *Resolver) MappingSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.mapping == nil {
		return 0
	}
	return r.mapping.Len()
}

func (r *Resolver) recordStat(kind MatchKind) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	switch kind {
	case MatchExact:
		r.stats.Exact++
	case MatchNormalized:
		r.stats.Normalized++
	case MatchFuzzyJaccard:
		r.stats.FuzzyJaccard++
	case MatchFuzzyEdit:
		r.stats.FuzzyEdit++
	default:
		r.stats.Misses++
	}
}

// candidateKeys collects a record's identifier candidates in priority
// order: direct id, payload id fields, filenames, paths (full and
// basename), then title.
func candidateKeys(rec ExternalRecord) []string {
	keys := make([]string, 0, 8)
	if rec.ExternalID != "" {
		keys = append(keys, rec.ExternalID)
	}
	keys = appendPayloadStrings(keys, rec.Payload, payloadIDFields)
	keys = appendPayloadStrings(keys, rec.Payload, payloadFilenameFields)
	for _, field := range payloadPathFields {
		if v := payloadString(rec.Payload, field); v != "" {
			keys = append(keys, v)
			if base := pathBase(v); base != v {
				keys = append(keys, base)
			}
		}
	}
	keys = appendPayloadStrings(keys, rec.Payload, payloadTitleFields)
	return keys
}

// internalFileID picks the internal file identifier a record maps to: the
// stored filename when present, else the path basename, else the title,
// else the external id itself.
func internalFileID(rec ExternalRecord) string {
	for _, field := range payloadFilenameFields {
		if v := payloadString(rec.Payload, field); v != "" {
			return v
		}
	}
	for _, field := range payloadPathFields {
		if v := payloadString(rec.Payload, field); v != "" {
			return pathBase(v)
		}
	}
	for _, field := range payloadTitleFields {
		if v := payloadString(rec.Payload, field); v != "" {
			return v
		}
	}
	return rec.ExternalID
}

// normalizedVariants returns the lowercase lookup variants of a key:
// the key itself, its extension-stripped form, its path basename, and the
// basename without extension.
func normalizedVariants(key string) []string {
	lower := strings.ToLower(key)
	variants := []string{lower}

	if noExt := stripExt(lower); noExt != lower {
		variants = append(variants, noExt)
	}
	if base := pathBase(lower); base != lower {
		variants = append(variants, base)
		if baseNoExt := stripExt(base); baseNoExt != base {
			variants = append(variants, baseNoExt)
		}
	}
	return variants
}

func appendPayloadStrings(keys []string, payload map[string]any, fields []string) []string {
	for _, field := range fields {
		if v := payloadString(payload, field); v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}

func payloadString(payload map[string]any, field string) string {
	if payload == nil {
		return ""
	}
	v, ok := payload[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// pathBase returns the last path segment, treating both slash styles as
// separators (collaborator payloads mix them).
func pathBase(s string) string {
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		return s[i+1:]
	}
	return s
}

// stripExt removes a trailing extension from the last path segment.
// Leading-dot segments (".env") keep their dot.
func stripExt(s string) string {
	sep := strings.LastIndexAny(s, `/\`)
	dot := strings.LastIndexByte(s, '.')
	if dot > sep+1 {
		return s[:dot]
	}
	return s
}
