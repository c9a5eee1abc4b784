// Package embeddings provides embedding generation for the vector store.
//
// Two providers are available: "local" runs an ONNX model in-process via
// fastembed (requires CGO), "remote" talks to an HTTP embedding service
// with a TEI-compatible /embed endpoint. The remote provider throttles
// and retries; the local one is bounded only by CPU.
package embeddings

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/config"
	"github.com/chakssp/convergd/internal/vectorstore"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embeddings and knows its model's dimensionality.
type Provider interface {
	vectorstore.Embedder

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// New creates a Provider from configuration.
func New(cfg config.EmbeddingsConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "local":
		cacheDir, err := config.ExpandPath(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("expanding cache dir: %w", err)
		}
		return NewLocalProvider(LocalConfig{
			Model:    cfg.Model,
			CacheDir: cacheDir,
		})

	case "remote", "":
		return NewRemoteProvider(RemoteConfig{
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			APIKey:         cfg.APIKey.Value(),
			Timeout:        cfg.Timeout,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: local, remote)", ErrInvalidConfig, cfg.Provider)
	}
}
