package storage

import (
	"context"
	"sync"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

// MemoryStore is an in-memory key/value store. It satisfies the same contract
// as the SQLite store but loses all data on restart; it backs the "memory"
// storage backend and the test suites.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get retrieves the value for a key.
// Returns domain.ErrNotFound if the key does not exist.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return "", domain.NewNotFoundError("key", key)
	}

	return value, nil
}

// Set stores a value under a key, overwriting any existing value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value

	return nil
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

// Ping always succeeds; the store has no external dependency.
func (s *MemoryStore) Ping(context.Context) error { return nil }
