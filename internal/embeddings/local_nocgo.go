//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrLocalNotAvailable is returned when the binary was built without CGO;
// the local ONNX runtime needs it. Use the remote provider instead.
var ErrLocalNotAvailable = errors.New("embeddings: local provider not available (built without CGO)")

// LocalConfig holds configuration for the in-process ONNX provider.
type LocalConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// LocalProvider is a stub for non-CGO builds.
type LocalProvider struct{}

// NewLocalProvider returns ErrLocalNotAvailable.
func NewLocalProvider(_ LocalConfig) (*LocalProvider, error) {
	return nil, ErrLocalNotAvailable
}

func (p *LocalProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrLocalNotAvailable
}

func (p *LocalProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrLocalNotAvailable
}

func (p *LocalProvider) Dimension() int { return 0 }

func (p *LocalProvider) Close() error { return nil }
