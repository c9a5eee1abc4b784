package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRegistry = `
categories:
  - name: ai/ml
    color: "#4f94cd"
  - name: strategy
  - name: technical
files:
  report-final.md: [ai/ml, strategy]
  notes/meeting.md: [Strategy]
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	cats := r.Categories()
	require.Len(t, cats, 3)
	assert.Equal(t, "ai/ml", cats[0].Name)
	assert.Equal(t, "#4f94cd", cats[0].Color)

	assert.Equal(t, []string{"ai/ml", "strategy"}, r.ManualCategories("report-final.md"))
	assert.Equal(t, 2, r.CuratedFiles())
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(filepath.Join(t.TempDir(), "absent.yaml")))

	assert.Empty(t, r.Categories())
	assert.Nil(t, r.ManualCategories("anything.md"))
}

func TestLoadMalformedKeepsPriorState(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	bad := writeRegistry(t, "categories: [\n  broken")
	require.Error(t, r.Load(bad))

	// Prior curation survives a broken reload.
	assert.Equal(t, []string{"ai/ml", "strategy"}, r.ManualCategories("report-final.md"))
}

func TestManualCategoriesUncuratedIsNil(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	assert.Nil(t, r.ManualCategories("uncurated.md"))
}

func TestFileAssignmentsCanonicalized(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	// "Strategy" in the file assignment maps onto the curated "strategy".
	assert.Equal(t, []string{"strategy"}, r.ManualCategories("notes/meeting.md"))
}

func TestCanonicalize(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	assert.Equal(t, "ai/ml", r.Canonicalize("AI/ML"))
	assert.Equal(t, "strategy", r.Canonicalize("STRATEGY"))
	assert.Equal(t, "novel-category", r.Canonicalize("novel-category"))

	assert.Equal(t, []string{"ai/ml", "unknown"}, r.CanonicalizeAll([]string{"Ai/Ml", "unknown"}))
	assert.Nil(t, r.CanonicalizeAll(nil))
}

func TestCounts(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	counts := r.Counts()
	require.Len(t, counts, 2)
	assert.Equal(t, CategoryCount{Name: "ai/ml", Files: 1}, counts[0])
	assert.Equal(t, CategoryCount{Name: "strategy", Files: 2}, counts[1])
}

func TestManualCategoriesReturnsCopy(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Load(writeRegistry(t, sampleRegistry)))

	got := r.ManualCategories("report-final.md")
	got[0] = "mutated"

	assert.Equal(t, []string{"ai/ml", "strategy"}, r.ManualCategories("report-final.md"))
}

func TestWatcherReloads(t *testing.T) {
	path := writeRegistry(t, sampleRegistry)
	r := NewRegistry(nil)
	require.NoError(t, r.Load(path))

	w, err := NewWatcher(r, path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	updated := `
categories:
  - name: ai/ml
files:
  report-final.md: [ai/ml]
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		cats := r.ManualCategories("report-final.md")
		return len(cats) == 1 && cats[0] == "ai/ml"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherStopIdempotent(t *testing.T) {
	path := writeRegistry(t, sampleRegistry)
	w, err := NewWatcher(NewRegistry(nil), path, nil)
	require.NoError(t, err)

	w.Stop()
	w.Stop() // second stop must not panic
}
