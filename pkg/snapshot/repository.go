package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/metrics"
	"chat-to-rich/pkg/storage"
	"chat-to-rich/pkg/writer"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMalformed is returned by Load when the stored payload can't be decoded.
// It also matches ledger.ErrMalformedSnapshot.
var ErrMalformed = errors.New("snapshot: malformed payload")

// DefaultFlushTimeout bounds how long Clear waits for pending writes.
const DefaultFlushTimeout = 5 * time.Second

// Config configures a Repository.
type Config struct {
	// Key is the slot the snapshot lives in (default storage.DefaultSnapshotKey).
	Key string

	Writer writer.AsyncWriterConfig

	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// Repository stores ledger snapshots in a single backend slot.
// Saves are encoded on the caller's goroutine and written in the background,
// newest snapshot wins. It implements ledger.Persister.
type Repository struct {
	backend storage.Backend
	writer  *writer.AsyncWriter
	key     string
	logger  *logging.Logger
	loads   singleflight.Group
}

var _ ledger.Persister = (*Repository)(nil)

// New creates a repository that owns backend; Close closes both the writer and the backend.
func New(backend storage.Backend, config Config) (*Repository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: snapshot backend is required", storage.ErrInvalidValue)
	}
	if config.Key == "" {
		config.Key = storage.DefaultSnapshotKey
	}
	if err := storage.ValidateKey(config.Key); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = logging.Component("snapshot")
	}

	return &Repository{
		backend: backend,
		writer:  writer.NewAsyncWriterWithMetrics(backend, config.Writer, config.Metrics),
		key:     config.Key,
		logger:  config.Logger.With(zap.String("key", config.Key), zap.String("backend", backend.Name())),
	}, nil
}

// Key returns the slot the repository reads and writes.
func (r *Repository) Key() string {
	return r.key
}

// Save encodes state and queues it for writing. It never waits for the backend.
func (r *Repository) Save(ctx context.Context, state ledger.AppState) error {
	data, err := ledger.EncodeState(state)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := r.writer.Write(ctx, r.key, data); err != nil {
		return fmt.Errorf("snapshot: queue write: %w", err)
	}
	return nil
}

// Load reads the stored snapshot. ok is false when nothing has been saved yet.
// Concurrent loads share one backend read.
func (r *Repository) Load(ctx context.Context) (ledger.AppState, bool, error) {
	v, err, _ := r.loads.Do(r.key, func() (interface{}, error) {
		return r.backend.Get(ctx, r.key)
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return ledger.AppState{}, false, nil
		}
		return ledger.AppState{}, false, fmt.Errorf("snapshot: read %s: %w", r.key, err)
	}

	state, err := ledger.DecodeState(v.([]byte))
	if err != nil {
		r.logger.Warn("stored snapshot is malformed", zap.Error(err))
		return ledger.AppState{}, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return state, true, nil
}

// Clear waits for pending writes and removes the stored snapshot.
func (r *Repository) Clear(ctx context.Context) error {
	if err := r.writer.Flush(DefaultFlushTimeout); err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, r.key); err != nil {
		return fmt.Errorf("snapshot: clear %s: %w", r.key, err)
	}
	r.logger.Info("snapshot cleared")
	return nil
}

// Flush waits until every queued snapshot has reached the backend or timeout passes.
func (r *Repository) Flush(timeout time.Duration) error {
	return r.writer.Flush(timeout)
}

// Stats reports the background writer's counters.
func (r *Repository) Stats() writer.AsyncWriterStats {
	return r.writer.Stats()
}

// Close drains pending writes and closes the backend.
func (r *Repository) Close() error {
	if err := r.writer.Close(); err != nil {
		return err
	}
	stats := r.writer.Stats()
	if stats.FailedWrites > 0 {
		r.logger.Warn("closed with failed writes",
			zap.Int64("failed", stats.FailedWrites),
			zap.String("last_error", stats.LastError),
		)
	}
	return r.backend.Close()
}
