package bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemStore is an in-memory Store for tests. It counts opens and puts per
// key so tests can assert, for example, that a cached digest spares the
// artifact bytes from being read a second time.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	opens   map[string]int
	puts    map[string]int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string][]byte),
		opens:   make(map[string]int),
		puts:    make(map[string]int),
	}
}

// List returns all keys in map iteration order. Callers that need a
// stable order must sort.
func (m *MemStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		keys = append(keys, key)
	}
	return keys, nil
}

// Open returns a reader over a copy of the stored bytes and increments
// the open count for key.
func (m *MemStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contents, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	m.opens[key]++
	return io.NopCloser(bytes.NewReader(bytes.Clone(contents))), nil
}

// Put stores a copy of contents under key and increments the put count.
func (m *MemStore) Put(_ context.Context, key string, contents []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(contents)
	m.puts[key]++
	return nil
}

// Exists reports whether key is present.
func (m *MemStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Bytes returns the stored contents for key.
func (m *MemStore) Bytes(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contents, ok := m.objects[key]
	return bytes.Clone(contents), ok
}

// Opens returns how many times key has been opened.
func (m *MemStore) Opens(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens[key]
}

// Puts returns how many times key has been written.
func (m *MemStore) Puts(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts[key]
}
