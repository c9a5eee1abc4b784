package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/config"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func respondVectors(t *testing.T, w http.ResponseWriter, vectors [][]float32) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(vectors))
}

func TestRemoteRequiresBaseURL(t *testing.T) {
	_, err := NewRemoteProvider(RemoteConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRemoteEmbedDocuments(t *testing.T) {
	var gotAuth string
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Inputs.([]interface{})
		respondVectors(t, w, make([][]float32, len(inputs)))
	})

	p, err := NewRemoteProvider(RemoteConfig{
		BaseURL: srv.URL,
		Model:   "nomic-embed-text-v1.5",
		APIKey:  "sekrit",
	}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}

func TestRemoteEmbedQuery(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondVectors(t, w, [][]float32{{0.1, 0.2}})
	})

	p, err := NewRemoteProvider(RemoteConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestRemoteEmptyInput(t *testing.T) {
	p, err := NewRemoteProvider(RemoteConfig{BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		respondVectors(t, w, [][]float32{{1}})
	})

	p, err := NewRemoteProvider(RemoteConfig{
		BaseURL:      srv.URL,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusUnprocessableEntity)
	})

	p, err := NewRemoteProvider(RemoteConfig{
		BaseURL:      srv.URL,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemoteVectorCountMismatch(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondVectors(t, w, [][]float32{{1}})
	})

	p, err := NewRemoteProvider(RemoteConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestRemoteRateLimiting(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondVectors(t, w, [][]float32{{1}})
	})

	p, err := NewRemoteProvider(RemoteConfig{
		BaseURL:        srv.URL,
		RateLimitRPS:   20,
		RateLimitBurst: 1,
	}, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
	}
	// Burst 1 at 20 rps: the second and third calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestDetectDimension(t *testing.T) {
	assert.Equal(t, 768, detectDimension("nomic-embed-text-v1.5"))
	assert.Equal(t, 768, detectDimension("BAAI/bge-base-en-v1.5"))
	assert.Equal(t, 384, detectDimension("BAAI/bge-small-en-v1.5"))
	assert.Equal(t, 384, detectDimension("all-MiniLM-L6-v2"))
	assert.Equal(t, 1024, detectDimension("BAAI/bge-large-en-v1.5"))
}

func TestNewFactory(t *testing.T) {
	srv := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		respondVectors(t, w, [][]float32{{1}})
	})

	p, err := New(config.EmbeddingsConfig{
		Provider: "remote",
		BaseURL:  srv.URL,
		Model:    "nomic-embed-text-v1.5",
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimension())
	require.NoError(t, p.Close())

	_, err = New(config.EmbeddingsConfig{Provider: "bogus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
