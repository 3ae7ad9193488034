package metrics

import (
	"time"
)

// MetricsCollector defines the interface for collecting ledger and persistence metrics.
// Implementations can export metrics to various backends (Prometheus, in-memory for tests).
type MetricsCollector interface {
	// Storage backend operations
	RecordGet(backend string, found bool, duration time.Duration)
	RecordSet(backend string, success bool, duration time.Duration)
	RecordDelete(backend string, success bool, duration time.Duration)
	RecordError(backend string, operation string, errorType string)

	// Circuit breaker
	RecordCircuitState(backend string, state CircuitState)

	// Snapshot writer
	RecordQueueDepth(backend string, depth int)
	RecordWriteCoalesced(backend string)
	RecordWriteDropped(backend string)
	RecordAsyncWrite(backend string, success bool, duration time.Duration)

	// Ledger
	RecordMutation(operation string)
	RecordBalance(balance float64)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the backend has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpCollector is a no-op implementation of MetricsCollector.
// It's used as the default collector when metrics are not needed.
type NoOpCollector struct{}

// RecordGet does nothing.
func (NoOpCollector) RecordGet(backend string, found bool, duration time.Duration) {}

// RecordSet does nothing.
func (NoOpCollector) RecordSet(backend string, success bool, duration time.Duration) {}

// RecordDelete does nothing.
func (NoOpCollector) RecordDelete(backend string, success bool, duration time.Duration) {}

// RecordError does nothing.
func (NoOpCollector) RecordError(backend string, operation string, errorType string) {}

// RecordCircuitState does nothing.
func (NoOpCollector) RecordCircuitState(backend string, state CircuitState) {}

// RecordQueueDepth does nothing.
func (NoOpCollector) RecordQueueDepth(backend string, depth int) {}

// RecordWriteCoalesced does nothing.
func (NoOpCollector) RecordWriteCoalesced(backend string) {}

// RecordWriteDropped does nothing.
func (NoOpCollector) RecordWriteDropped(backend string) {}

// RecordAsyncWrite does nothing.
func (NoOpCollector) RecordAsyncWrite(backend string, success bool, duration time.Duration) {}

// RecordMutation does nothing.
func (NoOpCollector) RecordMutation(operation string) {}

// RecordBalance does nothing.
func (NoOpCollector) RecordBalance(balance float64) {}
