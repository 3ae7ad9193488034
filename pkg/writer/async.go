package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/metrics"
	"chat-to-rich/pkg/storage"

	"go.uber.org/zap"
)

// AsyncWriter persists snapshots in the background without blocking the caller.
// Writes for the same key coalesce: only the newest payload waiting for a key is kept,
// so a slow backend can never overwrite a newer snapshot with an older one.
// A single worker drains keys in the order they first became pending.
type AsyncWriter struct {
	backend storage.Backend
	config  AsyncWriterConfig
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	name    string

	mu       sync.Mutex
	pending  map[string]writeOp
	order    []string
	inflight *writeOp
	seq      uint64
	closed   bool
	changed  chan struct{}

	wake chan struct{}
	done chan struct{}
	once sync.Once

	totalWrites     int64
	coalescedWrites int64
	droppedWrites   int64
	failedWrites    int64
	completedWrites int64
	lastError       atomic.Value // string
	lastWriteAt     atomic.Int64 // unix nanos
}

// writeOp is the newest payload waiting for a key.
type writeOp struct {
	key   string
	value []byte
	seq   uint64
}

// AsyncWriterConfig configures the async writer behavior.
type AsyncWriterConfig struct {
	// MaxPendingKeys bounds how many distinct keys may wait at once (default: 64).
	// Rewriting a key that is already pending never counts against it.
	MaxPendingKeys int

	// WriteTimeout bounds each backend write (default: 5s).
	WriteTimeout time.Duration
}

func (c AsyncWriterConfig) withDefaults() AsyncWriterConfig {
	if c.MaxPendingKeys <= 0 {
		c.MaxPendingKeys = 64
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// NewAsyncWriter creates a writer over backend. It must be closed with Close.
func NewAsyncWriter(backend storage.Backend, config AsyncWriterConfig) *AsyncWriter {
	return NewAsyncWriterWithMetrics(backend, config, metrics.NoOpCollector{})
}

// NewAsyncWriterWithMetrics creates a writer with a custom metrics collector.
func NewAsyncWriterWithMetrics(backend storage.Backend, config AsyncWriterConfig, collector metrics.MetricsCollector) *AsyncWriter {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	w := &AsyncWriter{
		backend: backend,
		config:  config.withDefaults(),
		metrics: collector,
		logger:  logging.Component("writer").With(zap.String("backend", backend.Name())),
		name:    backend.Name(),
		pending: make(map[string]writeOp),
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.lastError.Store("")

	go w.worker()

	return w
}

// Write queues value as the newest payload for key and returns immediately.
// A payload already waiting for key is replaced.
// Returns ErrQueueFull if MaxPendingKeys distinct keys are already waiting.
func (w *AsyncWriter) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordWriteDropped(w.name)
		return ErrWriterClosed
	}

	_, replacing := w.pending[key]
	if !replacing && len(w.pending) >= w.config.MaxPendingKeys {
		w.mu.Unlock()
		atomic.AddInt64(&w.droppedWrites, 1)
		w.metrics.RecordWriteDropped(w.name)
		return ErrQueueFull
	}

	w.seq++
	w.pending[key] = writeOp{key: key, value: storage.Clone(value), seq: w.seq}
	if !replacing {
		w.order = append(w.order, key)
	}
	depth := w.depthLocked()
	w.mu.Unlock()

	atomic.AddInt64(&w.totalWrites, 1)
	if replacing {
		atomic.AddInt64(&w.coalescedWrites, 1)
		w.metrics.RecordWriteCoalesced(w.name)
	}
	w.metrics.RecordQueueDepth(w.name, depth)

	select {
	case w.wake <- struct{}{}:
	default:
	}

	return nil
}

// depthLocked must be called with mu held.
func (w *AsyncWriter) depthLocked() int {
	depth := len(w.pending)
	if w.inflight != nil {
		depth++
	}
	return depth
}

// notifyLocked wakes Flush waiters. Must be called with mu held.
func (w *AsyncWriter) notifyLocked() {
	close(w.changed)
	w.changed = make(chan struct{})
}

// next pops the oldest pending key and marks it in flight.
func (w *AsyncWriter) next() (writeOp, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.order) > 0 {
		key := w.order[0]
		w.order = w.order[1:]
		op, ok := w.pending[key]
		if !ok {
			continue
		}
		delete(w.pending, key)
		w.inflight = &op
		return op, true
	}
	return writeOp{}, false
}

func (w *AsyncWriter) worker() {
	defer close(w.done)

	for {
		op, ok := w.next()
		if ok {
			w.persist(op)
			continue
		}

		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}

		<-w.wake
	}
}

func (w *AsyncWriter) persist(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	start := time.Now()
	err := w.backend.Set(ctx, op.key, op.value)
	cancel()
	duration := time.Since(start)

	w.metrics.RecordAsyncWrite(w.name, err == nil, duration)

	if err != nil {
		atomic.AddInt64(&w.failedWrites, 1)
		w.lastError.Store(err.Error())
		w.logger.Error("snapshot write failed",
			zap.String("key", op.key),
			zap.Uint64("seq", op.seq),
			zap.Duration("duration", duration),
			zap.String("error_type", storage.ClassifyError(err)),
			zap.Error(err),
		)
	} else {
		atomic.AddInt64(&w.completedWrites, 1)
		w.lastError.Store("")
		w.lastWriteAt.Store(time.Now().UnixNano())
		w.logger.Debug("snapshot written",
			zap.String("key", op.key),
			zap.Uint64("seq", op.seq),
			zap.Int("bytes", len(op.value)),
			zap.Duration("duration", duration),
		)
	}

	w.mu.Lock()
	w.inflight = nil
	depth := w.depthLocked()
	w.notifyLocked()
	w.mu.Unlock()

	w.metrics.RecordQueueDepth(w.name, depth)
}

// settledLocked reports whether every write accepted up to seq has finished or been superseded.
// Must be called with mu held.
func (w *AsyncWriter) settledLocked(seq uint64) bool {
	if w.inflight != nil && w.inflight.seq <= seq {
		return false
	}
	for _, op := range w.pending {
		if op.seq <= seq {
			return false
		}
	}
	return true
}

// Flush waits until every write accepted before the call has reached the backend
// (successfully or not), or until timeout.
func (w *AsyncWriter) Flush(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	w.mu.Lock()
	target := w.seq
	w.mu.Unlock()

	for {
		w.mu.Lock()
		if w.settledLocked(target) {
			w.mu.Unlock()
			return nil
		}
		changed := w.changed
		w.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return ErrFlushTimeout
		}
	}
}

// Close stops accepting writes, drains everything pending and waits for the worker.
func (w *AsyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()

		select {
		case w.wake <- struct{}{}:
		default:
		}
	})

	<-w.done
	return nil
}

// Name returns the backend name the writer persists to.
func (w *AsyncWriter) Name() string {
	return w.name
}

// Stats returns current statistics about the writer.
func (w *AsyncWriter) Stats() AsyncWriterStats {
	w.mu.Lock()
	depth := w.depthLocked()
	w.mu.Unlock()

	stats := AsyncWriterStats{
		QueueDepth:      depth,
		TotalWrites:     atomic.LoadInt64(&w.totalWrites),
		CoalescedWrites: atomic.LoadInt64(&w.coalescedWrites),
		DroppedWrites:   atomic.LoadInt64(&w.droppedWrites),
		FailedWrites:    atomic.LoadInt64(&w.failedWrites),
		CompletedWrites: atomic.LoadInt64(&w.completedWrites),
		LastError:       w.lastError.Load().(string),
	}
	if ns := w.lastWriteAt.Load(); ns > 0 {
		stats.LastWriteAt = time.Unix(0, ns)
	}
	return stats
}
