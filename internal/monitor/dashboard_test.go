package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chakssp/convergd/internal/server"
	"github.com/chakssp/convergd/pkg/convergence"
)

func sampleStats() server.StatsResponse {
	return server.StatsResponse{
		UptimeSeconds: 3725,
		Goroutines:    12,
		Evaluations: server.EvaluationStats{
			Total:        10,
			Converged:    7,
			NotConverged: 3,
			SchemaReady:  6,
			RecentScores: []float64{0.71, 0.84, 0.88},
		},
		Cache: convergence.CacheStats{Hits: 6, Misses: 4, Size: 3, Capacity: 100},
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	assert.Equal(t, "http://localhost:9090", model.baseURL)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
}

func TestModelInit(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	assert.NotNil(t, model.Init())
}

func TestModelUpdateQuitKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	m := updated.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModelUpdateRefreshKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	m := updated.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd)
}

func TestModelUpdateTick(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	_, cmd := model.Update(tickMsg(time.Now()))
	assert.NotNil(t, cmd)
}

func TestModelUpdateStats(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	updated, _ := model.Update(statsMsg(sampleStats()))

	m := updated.(Model)
	assert.Equal(t, uint64(10), m.stats.Evaluations.Total)
	assert.False(t, m.lastUpdate.IsZero())
	assert.NoError(t, m.err)
}

func TestViewRendersSections(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	updated, _ := model.Update(statsMsg(sampleStats()))
	view := updated.(Model).View()

	assert.Contains(t, view, "convergd Monitor")
	assert.Contains(t, view, "Evaluations")
	assert.Contains(t, view, "Result Cache")
	assert.Contains(t, view, "Identity Resolution")
	assert.Contains(t, view, "0.880")
}

func TestViewRendersError(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	updated, _ := model.Update(errMsg(assert.AnError))
	view := updated.(Model).View()

	assert.Contains(t, view, "Cannot reach convergd")
	assert.Contains(t, view, assert.AnError.Error())
}

func TestViewAfterQuit(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.Empty(t, updated.(Model).View())
}

func TestStatsClientFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"uptime_seconds":60,"goroutines":8,"evaluations":{"total":2,"converged":1,"not_converged":1,"schema_ready":1,"recent_scores":[0.8,0.9]},"cache":{"hits":1,"misses":1,"size":1,"capacity":100},"identity":{"exact":0,"normalized":0,"fuzzy_jaccard":0,"fuzzy_edit_distance":0,"misses":0,"mapping_size":0},"categories":[],"history_files":1}`))
	}))
	defer ts.Close()

	stats, err := NewStatsClient(ts.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Evaluations.Total)
	assert.Equal(t, 8, stats.Goroutines)
	assert.Len(t, stats.Evaluations.RecentScores, 2)
}

func TestStatsClientFetchErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := NewStatsClient(ts.URL).Fetch(context.Background())
	require.Error(t, err)

	_, err = NewStatsClient("http://127.0.0.1:1").Fetch(context.Background())
	require.Error(t, err)
}
