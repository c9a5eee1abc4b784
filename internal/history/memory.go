package history

import (
	"context"
	"sort"
	"sync"

	"github.com/chakssp/convergd/pkg/convergence"
)

// MemoryStore is an in-memory history store. Used by tests and ephemeral
// deployments; contents are lost on shutdown.
type MemoryStore struct {
	mu     sync.RWMutex
	byFile map[string][]convergence.Iteration
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFile: make(map[string][]convergence.Iteration),
	}
}

// Append adds one iteration to a file's history.
func (s *MemoryStore) Append(_ context.Context, fileID string, iter convergence.Iteration) error {
	if fileID == "" {
		return ErrEmptyFileID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.byFile[fileID] = append(s.byFile[fileID], iter)
	return nil
}

// History returns a copy of a file's iterations in append order.
func (s *MemoryStore) History(_ context.Context, fileID string) ([]convergence.Iteration, error) {
	if fileID == "" {
		return nil, ErrEmptyFileID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	iters, ok := s.byFile[fileID]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]convergence.Iteration, len(iters))
	copy(out, iters)
	return out, nil
}

// Files returns the identifiers of all files with stored history, sorted.
func (s *MemoryStore) Files(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	files := make([]string, 0, len(s.byFile))
	for id := range s.byFile {
		files = append(files, id)
	}
	sort.Strings(files)
	return files, nil
}

// Delete removes a file's history.
func (s *MemoryStore) Delete(_ context.Context, fileID string) error {
	if fileID == "" {
		return ErrEmptyFileID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.byFile, fileID)
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.byFile = nil
	return nil
}
