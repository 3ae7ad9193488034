package storage

import (
	"context"
)

// Backend defines the interface every durable slot implementation must satisfy.
// A slot stores an opaque byte payload under a string key; the ledger keeps its whole
// snapshot in a single key and overwrites it on every save.
type Backend interface {
	// Get retrieves the payload stored under key.
	// Returns ErrKeyNotFound if nothing has been stored yet.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the payload under key, replacing any previous payload.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the payload under key.
	// Returns nil if the key was deleted or didn't exist.
	Delete(ctx context.Context, key string) error

	// Name returns the identifier for this backend (e.g., "bolt", "redis", "sqlite").
	// Used for logging and metrics labels.
	Name() string

	// Close releases any resources held by the backend.
	Close() error
}

// Pinger is implemented by backends that can check connectivity to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backend if it supports it and returns nil otherwise.
func Ping(ctx context.Context, b Backend) error {
	if p, ok := b.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Clone returns a copy of value so callers can keep mutating their buffer.
func Clone(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}
