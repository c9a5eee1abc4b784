package knowledge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-reloads a Registry when its backing file changes.
type Watcher struct {
	registry *Registry
	path     string
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	logger   *zap.Logger
}

// NewWatcher creates a watcher for the registry file. The file's directory
// is watched, not the file itself, so editors that replace-on-save (write
// temp, rename over) still trigger a reload.
func NewWatcher(registry *Registry, path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating registry watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching registry directory: %w", err)
	}

	return &Watcher{
		registry: registry,
		path:     path,
		watcher:  fsw,
		stop:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins processing file events in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
	default:
		close(w.stop)
		_ = w.watcher.Close() // Best-effort cleanup
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.registry.Load(w.path); err != nil {
				// Keep the last good table; the user fixes the file
				// and saves again.
				w.logger.Warn("category registry reload failed",
					zap.String("path", w.path),
					zap.Error(err))
				continue
			}
			w.logger.Debug("category registry reloaded",
				zap.String("path", w.path))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("registry watcher error", zap.Error(err))
		}
	}
}
