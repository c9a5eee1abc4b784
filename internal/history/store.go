package history

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/config"
	"github.com/chakssp/convergd/pkg/convergence"
)

// Common errors for history stores.
var (
	// ErrNotFound indicates no history exists for the file.
	ErrNotFound = errors.New("no history for file")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("history store is closed")

	// ErrEmptyFileID indicates a missing file identifier.
	ErrEmptyFileID = errors.New("file ID cannot be empty")
)

// Store persists analysis iteration histories per file.
//
// Implementations must be safe for concurrent use. Append order is
// preserved; the engine re-sorts by timestamp itself, so stores never
// reorder.
type Store interface {
	// Append adds one iteration to a file's history.
	Append(ctx context.Context, fileID string, iter convergence.Iteration) error

	// History returns a file's iterations in append order. Returns
	// ErrNotFound when the file has no history.
	History(ctx context.Context, fileID string) ([]convergence.Iteration, error)

	// Files returns the identifiers of all files with stored history.
	Files(ctx context.Context) ([]string, error)

	// Delete removes a file's history. Deleting an absent file is not an
	// error.
	Delete(ctx context.Context, fileID string) error

	// Close releases the store's resources.
	Close() error
}

// New creates a history store from configuration.
//
// Providers: "badger" (embedded, persistent) and "memory" (ephemeral).
func New(cfg config.HistoryConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(), nil
	case "badger":
		path, err := config.ExpandPath(cfg.Badger.Path)
		if err != nil {
			return nil, fmt.Errorf("history store path: %w", err)
		}
		return NewBadgerStore(BadgerOptions{
			Path:     path,
			InMemory: cfg.Badger.InMemory,
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown history provider: %q", cfg.Provider)
	}
}
