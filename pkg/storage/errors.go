package storage

import (
	"errors"
	"fmt"
	"strings"
)

// Common storage errors.
// Backends return (or wrap) these so callers can branch with errors.Is.
var (
	// ErrKeyNotFound is returned when nothing is stored under the requested key
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrInvalidKey is returned when a key is empty, too long or contains control characters
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrInvalidValue is returned when a payload is nil or a config value is invalid
	ErrInvalidValue = errors.New("storage: invalid value")

	// ErrLayerUnavailable is returned when a backend is temporarily unavailable
	ErrLayerUnavailable = errors.New("storage: backend unavailable")

	// ErrTimeout is returned when a storage operation times out
	ErrTimeout = errors.New("storage: operation timeout")

	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("storage: circuit breaker open")

	// ErrClosed is returned when a backend is used after Close
	ErrClosed = errors.New("storage: backend closed")
)

// IsNotFound reports whether err means the key holds no payload.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsTimeout reports whether err is a storage timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable reports whether err means the backend is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrLayerUnavailable)
}

// IsCircuitOpen reports whether err was produced by an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// ClassifyError returns a short label for err, used as a metrics dimension.
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}

	switch {
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_breaker_open"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrLayerUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	case errors.Is(err, ErrInvalidValue):
		return "invalid_value"
	case errors.Is(err, ErrClosed):
		return "closed"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "connection", "connect", "dial"):
		return "connection"
	case containsAny(msg, "marshal", "unmarshal", "encode", "decode"):
		return "serialization"
	case containsAny(msg, "redis", "bolt", "sqlite", "postgres", "sql:"):
		return "backend"
	default:
		return "other"
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError adds the backend name and operation to err.
func WrapError(err error, backend string, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("storage %s %s: %w", backend, operation, err)
}
