// Package memory implements storage.Store as a plain in-process map.
//
// Used by tests and by ephemeral runs where persistence across restarts
// doesn't matter. The map is guarded by a mutex because HTTP handlers hit
// the store from multiple goroutines.
package memory

import (
	"sync"

	"github.com/sakif/threadlite/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a map-backed key-value store. The zero value is not usable;
// call New.
type Store struct {
	mu     sync.Mutex
	values map[string]string
}

func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
