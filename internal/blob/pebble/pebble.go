// Package pebble provides a PebbleDB-backed blob store.
package pebble

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	pebbledb "github.com/cockroachdb/pebble"

	"github.com/satchelbase/satchel/pkg/model"
)

// Store persists blobs in a PebbleDB database, one key per blob.
type Store struct {
	db     *pebbledb.DB
	path   string
	logger *slog.Logger

	// mu protects closed
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the blob database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("blob path is required")
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "blob-pebble")

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	db, err := pebbledb.Open(path, &pebbledb.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble database: %w", err)
	}

	return &Store{
		db:     db,
		path:   path,
		logger: logger,
	}, nil
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// Read returns the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, model.ErrStoreClosed
	}
	s.mu.RUnlock()

	value, closer, err := s.db.Get([]byte(name))
	if err != nil {
		if err == pebbledb.ErrNotFound {
			return nil, model.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	defer closer.Close()

	// The value is only valid until the closer is released.
	copied := append([]byte(nil), value...)
	return copied, nil
}

// Write stores data under name with a synced write.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return model.ErrStoreClosed
	}
	s.mu.RUnlock()

	if err := s.db.Set([]byte(name), data, pebbledb.Sync); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

// Delete removes the blob stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return model.ErrStoreClosed
	}
	s.mu.RUnlock()

	if err := s.db.Delete([]byte(name), pebbledb.Sync); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close pebble database: %w", err)
	}
	return nil
}
