// ABOUTME: Mock Store implementation for testing
// ABOUTME: In-memory key-value map with injectable read/write failures

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
// It is also the backend for storage.backend "memory".
type MockStore struct {
	mu     sync.RWMutex
	values map[Key][]byte
	closed bool

	// GetErr, when set, is returned by every Get call.
	GetErr error
	// SetErr, when set, is returned by every Set and Remove call.
	SetErr error

	sets int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		values: make(map[Key][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (m *MockStore) Get(ctx context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a copy of value under key.
func (m *MockStore) Set(ctx context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.SetErr != nil {
		return m.SetErr
	}

	// Make a copy to avoid external modification
	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	m.sets++
	return nil
}

// Remove deletes the given keys.
func (m *MockStore) Remove(ctx context.Context, keys ...Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.SetErr != nil {
		return m.SetErr
	}

	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Close marks the store closed; later calls return ErrClosed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Has reports whether key currently holds a value.
func (m *MockStore) Has(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok
}

// SetCount returns how many successful Set calls have been made.
func (m *MockStore) SetCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sets
}

var _ Store = (*MockStore)(nil)
