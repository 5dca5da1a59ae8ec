// Package memory provides an in-memory blob store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/satchelbase/satchel/pkg/model"
)

// Store keeps blobs in a map. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		blobs: make(map[string][]byte),
	}
}

// Read returns a copy of the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, model.ErrStoreClosed
	}
	data, ok := s.blobs[name]
	if !ok {
		return nil, model.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data under name.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrStoreClosed
	}
	s.blobs[name] = append([]byte(nil), data...)
	return nil
}

// Delete removes the blob stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.ErrStoreClosed
	}
	delete(s.blobs, name)
	return nil
}

// Close marks the store closed. Further operations fail with
// model.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
