package memory

import (
	"context"
	"sync"
	"time"

	"chat-to-rich/pkg/storage"
)

// MemoryBackend is an in-process implementation of storage.Backend.
// Payloads are copied on the way in and out so callers can't alias stored bytes.
// It is used by tests and by sessions that don't need durability.
type MemoryBackend struct {
	// data stores the payloads
	data map[string]*entry

	// mu protects concurrent access to data and closed
	mu sync.RWMutex

	name   string
	closed bool
}

// entry represents a stored payload with bookkeeping used by Stats.
type entry struct {
	value     []byte
	updatedAt time.Time
	version   int64
}

// MemoryBackendConfig holds configuration for the memory backend
type MemoryBackendConfig struct {
	// Name is the backend identifier
	Name string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(config MemoryBackendConfig) *MemoryBackend {
	if config.Name == "" {
		config.Name = "memory"
	}

	return &MemoryBackend{
		data: make(map[string]*entry),
		name: config.Name,
	}
}

// Get returns a copy of the payload stored under key.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, storage.ErrClosed
	}

	e, ok := m.data[key]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}

	return storage.Clone(e.value), nil
}

// Set stores a copy of value under key.
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		return storage.ErrInvalidValue
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return storage.ErrClosed
	}

	version := int64(1)
	if prev, ok := m.data[key]; ok {
		version = prev.version + 1
	}

	m.data[key] = &entry{
		value:     storage.Clone(value),
		updatedAt: time.Now(),
		version:   version,
	}

	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return storage.ErrClosed
	}

	delete(m.data, key)
	return nil
}

// Name returns the backend name.
func (m *MemoryBackend) Name() string {
	return m.name
}

// Close drops all payloads. Further calls return storage.ErrClosed.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Version returns how many times key has been written, or 0 if it holds nothing.
func (m *MemoryBackend) Version(key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.data[key]; ok {
		return e.version
	}
	return 0
}

// Stats returns current backend statistics.
func (m *MemoryBackend) Stats() MemoryBackendStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := MemoryBackendStats{Keys: len(m.data)}
	for _, e := range m.data {
		stats.Bytes += len(e.value)
		if e.updatedAt.After(stats.LastWrite) {
			stats.LastWrite = e.updatedAt
		}
	}
	return stats
}

// MemoryBackendStats holds backend statistics.
type MemoryBackendStats struct {
	Keys      int       // Number of stored keys
	Bytes     int       // Total payload size
	LastWrite time.Time // Time of the most recent Set
}
