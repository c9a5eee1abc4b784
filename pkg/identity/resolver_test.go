package identity

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []ExternalRecord {
	return []ExternalRecord{
		{
			ExternalID: "3f8a1c2e-9b4d-4e6f-8a2b-1c3d5e7f9a0b",
			RawScore:   28.4,
			Payload: map[string]any{
				"fileName":   "Report-Final.md",
				"filePath":   "projects/2025/Report-Final.md",
				"categories": []any{"analysis"},
			},
		},
		{
			ExternalID: "7d2e4f6a-1b3c-4d5e-9f0a-2b4c6d8e0f1a",
			RawScore:   12.0,
			Payload: map[string]any{
				"fileName": "architecture-notes.md",
				"title":    "Architecture Notes",
			},
		},
	}
}

func TestBuildMapping(t *testing.T) {
	m := BuildMapping(sampleRecords())

	assert.Equal(t, 2, m.Len())
	// First record: id, fileName, path, basename (dup of fileName).
	// Second record: id, fileName, title.
	assert.Equal(t, 6, m.KeyCount())
}

func TestMappingLookup(t *testing.T) {
	m := BuildMapping(sampleRecords())

	t.Run("exact external id", func(t *testing.T) {
		match := m.Lookup("3f8a1c2e-9b4d-4e6f-8a2b-1c3d5e7f9a0b")
		require.True(t, match.Found())
		assert.Equal(t, MatchExact, match.Kind)
		assert.Equal(t, "Report-Final.md", match.FileID)
		assert.Equal(t, 1.0, match.Similarity)
		require.NotNil(t, match.Record)
		assert.Equal(t, 28.4, match.Record.RawScore)
	})

	t.Run("exact filename", func(t *testing.T) {
		match := m.Lookup("Report-Final.md")
		assert.Equal(t, MatchExact, match.Kind)
		assert.Equal(t, "Report-Final.md", match.FileID)
	})

	t.Run("case folded and extension stripped", func(t *testing.T) {
		// A collaborator asking with the slug form still lands on the file.
		match := m.Lookup("report-final")
		require.True(t, match.Found())
		assert.Equal(t, MatchNormalized, match.Kind)
		assert.Equal(t, "Report-Final.md", match.FileID)
		assert.Equal(t, 1.0, match.Similarity)
	})

	t.Run("path basename", func(t *testing.T) {
		match := m.Lookup("PROJECTS/2025/REPORT-FINAL.MD")
		assert.Equal(t, MatchNormalized, match.Kind)
		assert.Equal(t, "Report-Final.md", match.FileID)
	})

	t.Run("fuzzy edit distance", func(t *testing.T) {
		// Underscore instead of space: not a registered variant, but the
		// title key is one edit away and well inside the threshold.
		match := m.Lookup("architecture_notes")
		require.True(t, match.Found())
		assert.Equal(t, MatchFuzzyEdit, match.Kind)
		assert.Equal(t, "Architecture Notes", match.Key)
		assert.Equal(t, "architecture-notes.md", match.FileID)
		assert.InDelta(t, 17.0/18.0, match.Similarity, 1e-12)
	})

	t.Run("below threshold is a miss", func(t *testing.T) {
		match := m.Lookup("qqqq-6789")
		assert.False(t, match.Found())
		assert.Equal(t, MatchNone, match.Kind)
		assert.Empty(t, match.FileID)
	})

	t.Run("empty query is a miss", func(t *testing.T) {
		match := m.Lookup("")
		assert.False(t, match.Found())
	})
}

func TestMappingLookupExactBeatsFuzzy(t *testing.T) {
	// A near-identical decoy must not shadow an exact key.
	m := BuildMapping([]ExternalRecord{
		{ExternalID: "alphaa", Payload: map[string]any{"fileName": "decoy.md"}},
		{ExternalID: "alpha", Payload: map[string]any{"fileName": "target.md"}},
	})

	match := m.Lookup("alpha")
	assert.Equal(t, MatchExact, match.Kind)
	assert.Equal(t, "target.md", match.FileID)
}

func TestMappingLookupTieGoesToEarlierRecord(t *testing.T) {
	m := BuildMapping([]ExternalRecord{
		{ExternalID: "id-1", Payload: map[string]any{"filePath": "docs/plan.md"}},
		{ExternalID: "id-2", Payload: map[string]any{"filePath": "notes/plan.md"}},
	})

	// Unseen directory, shared basename: both keys score 1.0 in the fuzzy
	// stage, so the first-registered record wins.
	match := m.Lookup("archive/plan.md")
	require.True(t, match.Found())
	assert.Equal(t, MatchNormalized, match.Kind)
	assert.Equal(t, "plan.md", match.FileID)
	require.NotNil(t, match.Record)
	assert.Equal(t, "id-1", match.Record.ExternalID)
}

func TestInternalFileID(t *testing.T) {
	tests := []struct {
		name   string
		record ExternalRecord
		want   string
	}{
		{
			name:   "filename wins",
			record: ExternalRecord{ExternalID: "x", Payload: map[string]any{"fileName": "a.md", "filePath": "dir/b.md", "title": "T"}},
			want:   "a.md",
		},
		{
			name:   "path basename when no filename",
			record: ExternalRecord{ExternalID: "x", Payload: map[string]any{"filePath": "dir/sub/b.md"}},
			want:   "b.md",
		},
		{
			name:   "title as fallback",
			record: ExternalRecord{ExternalID: "x", Payload: map[string]any{"title": "Quarterly Summary"}},
			want:   "Quarterly Summary",
		},
		{
			name:   "external id as last resort",
			record: ExternalRecord{ExternalID: "raw-id"},
			want:   "raw-id",
		},
		{
			name:   "snake case field variant",
			record: ExternalRecord{ExternalID: "x", Payload: map[string]any{"source_file": "legacy.md"}},
			want:   "legacy.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, internalFileID(tt.record))
		})
	}
}

func TestPathHelpers(t *testing.T) {
	t.Run("pathBase", func(t *testing.T) {
		assert.Equal(t, "c.md", pathBase("a/b/c.md"))
		assert.Equal(t, "doc.txt", pathBase(`archive\doc.txt`))
		assert.Equal(t, "plain", pathBase("plain"))
	})

	t.Run("stripExt", func(t *testing.T) {
		assert.Equal(t, "report", stripExt("report.md"))
		assert.Equal(t, "a/b/report", stripExt("a/b/report.md"))
		assert.Equal(t, ".env", stripExt(".env"))
		assert.Equal(t, "dir/.env", stripExt("dir/.env"))
		assert.Equal(t, "archive.tar", stripExt("archive.tar.gz"))
		assert.Equal(t, "noext", stripExt("noext"))
	})
}

func TestResolver(t *testing.T) {
	r := NewResolver()

	t.Run("empty resolver misses", func(t *testing.T) {
		match := r.Lookup("anything")
		assert.False(t, match.Found())
		assert.Equal(t, 0, r.MappingSize())
	})

	t.Run("resolve installs mapping", func(t *testing.T) {
		mapping := r.Resolve(sampleRecords())
		require.NotNil(t, mapping)
		assert.Equal(t, 2, r.MappingSize())

		match := r.Lookup("report-final")
		assert.Equal(t, MatchNormalized, match.Kind)
	})

	t.Run("resolve is idempotent", func(t *testing.T) {
		before := r.Lookup("Report-Final.md")
		r.Resolve(sampleRecords())
		after := r.Lookup("Report-Final.md")
		assert.Equal(t, before.FileID, after.FileID)
		assert.Equal(t, before.Kind, after.Kind)
		assert.Equal(t, 2, r.MappingSize())
	})

	t.Run("stats count by match kind", func(t *testing.T) {
		fresh := NewResolver()
		fresh.Resolve(sampleRecords())

		fresh.Lookup("Report-Final.md")      // exact
		fresh.Lookup("report-final")         // normalized
		fresh.Lookup("architecture_notes")   // fuzzy edit
		fresh.Lookup("qqqq-6789")            // miss

		stats := fresh.Stats()
		assert.Equal(t, uint64(1), stats.Exact)
		assert.Equal(t, uint64(1), stats.Normalized)
		assert.Equal(t, uint64(1), stats.FuzzyEdit)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, uint64(4), stats.Total())
	})

	t.Run("reset clears mapping and stats", func(t *testing.T) {
		r.Reset()
		assert.Equal(t, 0, r.MappingSize())
		assert.Equal(t, uint64(0), r.Stats().Total())
		assert.False(t, r.Lookup("Report-Final.md").Found())
	})
}

func TestResolverConcurrentAccess(t *testing.T) {
	r := NewResolver()
	r.Resolve(sampleRecords())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Lookup(fmt.Sprintf("report-final-%d", n))
				r.Lookup("Report-Final.md")
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			r.Resolve(sampleRecords())
		}
	}()
	wg.Wait()

	assert.Equal(t, 2, r.MappingSize())
}
