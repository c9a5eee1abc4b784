package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/pkg/convergence"
)

// Key layout: it/<escaped-file-id>/<8-byte big-endian seq> -> JSON iteration.
// The file id segment is path-escaped so ids containing '/' cannot collide
// with the separator.
const iterPrefix = "it/"

// BadgerOptions configures the embedded store.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs without persistence. All data in RAM, lost on close.
	InMemory bool

	// Logger receives store lifecycle logs. Badger's own chatter is
	// discarded.
	Logger *zap.Logger
}

// BadgerStore persists histories in an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger

	// seqMu serializes Append's read-next-sequence/write pair per store.
	// Badger transactions alone would make concurrent appends to the same
	// file conflict and fail; a single mutex is simpler at this scale.
	seqMu  sync.Mutex
	closed bool
	mu     sync.RWMutex
}

// NewBadgerStore opens (or creates) the database.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	opts.Logger.Info("history store opened",
		zap.String("path", opts.Path),
		zap.Bool("in_memory", opts.InMemory))

	return &BadgerStore{
		db:     db,
		logger: opts.Logger,
	}, nil
}

// Append adds one iteration to a file's history.
func (s *BadgerStore) Append(_ context.Context, fileID string, iter convergence.Iteration) error {
	if fileID == "" {
		return ErrEmptyFileID
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	payload, err := json.Marshal(iter)
	if err != nil {
		return fmt.Errorf("encoding iteration: %w", err)
	}

	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn, fileID)
		if err != nil {
			return err
		}
		return txn.Set(iterKey(fileID, seq), payload)
	})
}

// History returns a file's iterations in append order.
func (s *BadgerStore) History(_ context.Context, fileID string) ([]convergence.Iteration, error) {
	if fileID == "" {
		return nil, ErrEmptyFileID
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var iters []convergence.Iteration
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := filePrefix(fileID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var iter convergence.Iteration
				if err := json.Unmarshal(val, &iter); err != nil {
					return fmt.Errorf("decoding iteration: %w", err)
				}
				iters = append(iters, iter)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(iters) == 0 {
		return nil, ErrNotFound
	}
	return iters, nil
}

// Files returns the identifiers of all files with stored history.
func (s *BadgerStore) Files(_ context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(iterPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, ok := fileIDFromKey(it.Item().Key())
			if !ok {
				continue
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				files = append(files, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Delete removes a file's history.
func (s *BadgerStore) Delete(_ context.Context, fileID string) error {
	if fileID == "" {
		return ErrEmptyFileID
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := filePrefix(fileID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// nextSeq counts the file's existing entries inside the transaction. Key
// order is the big-endian sequence, so count == next sequence.
func nextSeq(txn *badger.Txn, fileID string) (uint64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	prefix := filePrefix(fileID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, nil
}

func filePrefix(fileID string) []byte {
	return []byte(iterPrefix + url.PathEscape(fileID) + "/")
}

func iterKey(fileID string, seq uint64) []byte {
	key := filePrefix(fileID)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

// fileIDFromKey extracts and unescapes the file id segment of a key.
func fileIDFromKey(key []byte) (string, bool) {
	rest := string(key[len(iterPrefix):])
	// The sequence suffix is "/" + 8 bytes.
	if len(rest) < 9 {
		return "", false
	}
	escaped := rest[:len(rest)-9]
	id, err := url.PathUnescape(escaped)
	if err != nil {
		return "", false
	}
	return id, true
}
