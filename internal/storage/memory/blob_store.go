// Package memory keeps documents in-process for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

// Store holds documents in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{docs: make(map[string]string)}
}

// Save implements storage.Store.
func (s *Store) Save(_ context.Context, key, content string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = content
	return nil
}

// Load implements storage.Store.
func (s *Store) Load(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.docs[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return content, nil
}

// Keys returns the number of stored documents.
func (s *Store) Keys() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
