//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// LocalConfig holds configuration for the in-process ONNX provider.
type LocalConfig struct {
	// Model is the embedding model name. Defaults to BAAI/bge-base-en-v1.5
	// to match the default 768-dimension collection.
	Model string

	// CacheDir is where model files are downloaded and unpacked.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// localModels maps friendly model names to fastembed constants.
var localModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// localDimensions maps fastembed models to embedding dimensions.
var localDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.AllMiniLML6V2: 384,
}

// LocalProvider generates embeddings with a local ONNX model. No network,
// no service to run, at the cost of a CGO dependency on onnxruntime.
type LocalProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex
}

// NewLocalProvider initializes the ONNX model, downloading it into the
// cache directory on first use.
func NewLocalProvider(cfg LocalConfig) (*LocalProvider, error) {
	name := cfg.Model
	if name == "" {
		name = "BAAI/bge-base-en-v1.5"
	}

	model, ok := localModels[name]
	if !ok {
		model = fastembed.EmbeddingModel(name)
		if _, known := localDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported model %q", ErrInvalidConfig, name)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing local model: %w", err)
	}

	return &LocalProvider{
		model:     flagEmbed,
		modelName: name,
		dimension: localDimensions[model],
	}, nil
}

// EmbedDocuments embeds multiple texts with the "passage: " prefix BGE
// models expect for documents.
func (p *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embeddings, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embeddings, nil
}

// EmbedQuery embeds a single query with the "query: " prefix.
func (p *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embedding, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embedding, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *LocalProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX runtime resources.
func (p *LocalProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}

var _ Provider = (*LocalProvider)(nil)
