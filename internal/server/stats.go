package server

import (
	"sync"
	"time"

	"github.com/chakssp/convergd/internal/knowledge"
	"github.com/chakssp/convergd/pkg/convergence"
	"github.com/chakssp/convergd/pkg/identity"
)

// recentScoreWindow bounds the composite-score history kept for the
// dashboard sparkline.
const recentScoreWindow = 60

// StatsResponse is the GET /api/v1/stats payload. The monitor TUI and the
// CLI decode this shape.
type StatsResponse struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`

	Evaluations  EvaluationStats           `json:"evaluations"`
	Cache        convergence.CacheStats    `json:"cache"`
	Identity     IdentityStats             `json:"identity"`
	Categories   []knowledge.CategoryCount `json:"categories"`
	HistoryFiles int                       `json:"history_files"`
}

// EvaluationStats aggregates evaluation outcomes since startup.
type EvaluationStats struct {
	Total        uint64    `json:"total"`
	Converged    uint64    `json:"converged"`
	NotConverged uint64    `json:"not_converged"`
	SchemaReady  uint64    `json:"schema_ready"`
	RecentScores []float64 `json:"recent_scores"`
}

// IdentityStats extends the resolver's lookup counters with mapping size.
type IdentityStats struct {
	identity.LookupStats
	MappingSize int `json:"mapping_size"`
}

// statsTracker accumulates evaluation outcomes. Safe for concurrent use.
type statsTracker struct {
	mu           sync.Mutex
	total        uint64
	converged    uint64
	notConverged uint64
	schemaReady  uint64
	scores       []float64
	startedAt    time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{
		scores:    make([]float64, 0, recentScoreWindow),
		startedAt: time.Now(),
	}
}

func (t *statsTracker) recordEvaluation(result *convergence.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if result.Converged {
		t.converged++
	} else {
		t.notConverged++
	}
	if result.SchemaReady {
		t.schemaReady++
	}

	if len(t.scores) == recentScoreWindow {
		copy(t.scores, t.scores[1:])
		t.scores = t.scores[:recentScoreWindow-1]
	}
	t.scores = append(t.scores, result.CompositeScore)
}

func (t *statsTracker) snapshot() EvaluationStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	scores := make([]float64, len(t.scores))
	copy(scores, t.scores)
	return EvaluationStats{
		Total:        t.total,
		Converged:    t.converged,
		NotConverged: t.notConverged,
		SchemaReady:  t.schemaReady,
		RecentScores: scores,
	}
}

func (t *statsTracker) uptime() time.Duration {
	return time.Since(t.startedAt)
}
