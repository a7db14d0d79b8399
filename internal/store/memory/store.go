// Package memory provides an in-memory store implementation for
// development and testing.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"catalogsync/internal/store"
)

// Store keeps values in a mutex-guarded map. It does not survive restarts
// and exists for tests and local development.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// New constructs an empty Store.
func New() *Store {
	return &Store{values: make(map[string]json.RawMessage)}
}

// Get returns a copy of the stored value or store.ErrNotFound.
func (s *Store) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append(json.RawMessage(nil), val...), nil
}

// Set stores a copy of value under key, replacing any previous value.
func (s *Store) Set(_ context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

// Keys returns every stored key; used by tests asserting namespace isolation.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}
