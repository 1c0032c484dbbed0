// Package sessionstore is the durable persistence boundary for the signed-in
// session. It owns every persisted session key and knows nothing about HTTP
// or UI concerns.
//
// Entries are stored as independent string values in a key-value Backend:
//
//	token           bearer credential
//	user            {"email": ...}
//	profile         optional person/company record
//	roles           optional role assignments
//	schema_version  layout version of the entries above
package sessionstore

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned by Backend.Get when a key has no value.
var ErrNotFound = errors.New("sessionstore: key not found")

// Backend is a durable string key-value store.
//
// Delete must succeed when the key does not exist.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryBackend keeps entries in process memory. It does not survive a
// restart and is meant for tests and ephemeral shells.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]string)}
}

// Get returns the value stored under key.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryBackend) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Keys lists stored keys in sorted order.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
