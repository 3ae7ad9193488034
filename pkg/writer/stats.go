package writer

import (
	"errors"
	"time"
)

// AsyncWriterStats provides statistics about async writer operations.
type AsyncWriterStats struct {
	// QueueDepth is the number of keys waiting or being written.
	QueueDepth int `json:"queueDepth"`

	// TotalWrites counts accepted Write calls.
	TotalWrites int64 `json:"totalWrites"`

	// CoalescedWrites counts payloads replaced by a newer one before being written.
	CoalescedWrites int64 `json:"coalescedWrites"`

	// DroppedWrites counts writes rejected because the writer was full or closed.
	DroppedWrites int64 `json:"droppedWrites"`

	// FailedWrites counts backend writes that returned an error.
	FailedWrites int64 `json:"failedWrites"`

	// CompletedWrites counts backend writes that succeeded.
	CompletedWrites int64 `json:"completedWrites"`

	// LastError is the message of the most recent write if it failed; empty once a write succeeds.
	LastError string `json:"lastError,omitempty"`

	// LastWriteAt is when the most recent successful write finished.
	LastWriteAt time.Time `json:"lastWriteAt,omitempty"`
}

// Healthy reports whether the most recent write succeeded or none has run yet.
func (s AsyncWriterStats) Healthy() bool {
	return s.LastError == ""
}

// Errors returned by async writer operations.
var (
	// ErrQueueFull is returned when too many distinct keys are already waiting.
	ErrQueueFull = errors.New("writer: queue full, write dropped")

	// ErrWriterClosed is returned when attempting to write to a closed writer.
	ErrWriterClosed = errors.New("writer: writer is closed")

	// ErrFlushTimeout is returned when Flush times out waiting for pending writes.
	ErrFlushTimeout = errors.New("writer: flush timeout exceeded")
)
