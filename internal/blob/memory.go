package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-process Store used by tests and test mode. It can be
// armed to fail a number of times to exercise retry behavior.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures map[string][]error
	fetches  int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		objects:  make(map[string][]byte),
		failures: make(map[string][]error),
	}
}

// Put stores object bytes under key.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// FailNext queues errors returned by the next Fetch calls for key, before
// any stored bytes are served.
func (m *MemoryStore) FailNext(key string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[key] = append(m.failures[key], errs...)
}

// Fetches returns how many Fetch calls were made.
func (m *MemoryStore) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Fetch implements Store.
func (m *MemoryStore) Fetch(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.fetches++
	if queued := m.failures[key]; len(queued) > 0 {
		err := queued[0]
		m.failures[key] = queued[1:]
		m.mu.Unlock()
		return err
	}
	data, ok := m.objects[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("object %s not found", key)
	}
	_, err := io.Copy(w, bytes.NewReader(data))
	return err
}
