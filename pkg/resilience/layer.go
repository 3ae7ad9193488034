package resilience

import (
	"context"
	"errors"
	"time"

	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/metrics"
	"chat-to-rich/pkg/storage"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ResilientBackend wraps a storage.Backend with a circuit breaker and a per-operation timeout.
// A missing snapshot is a normal answer and never counts against the breaker.
type ResilientBackend struct {
	backend storage.Backend
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewResilientBackend wraps backend without metrics.
func NewResilientBackend(backend storage.Backend, config ResilientConfig) *ResilientBackend {
	return NewResilientBackendWithMetrics(backend, config, metrics.NoOpCollector{})
}

// NewResilientBackendWithMetrics wraps backend and reports to collector.
func NewResilientBackendWithMetrics(backend storage.Backend, config ResilientConfig, collector metrics.MetricsCollector) *ResilientBackend {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	name := backend.Name()
	logger := logging.Component("resilience").Named(name)

	rb := &ResilientBackend{
		backend: backend,
		timeout: config.Timeout,
		metrics: collector,
		logger:  logger,
	}

	logger.Debug("resilient backend initialized",
		zap.String("backend", name),
		zap.Duration("timeout", config.Timeout),
		zap.Uint32("max_requests", config.CircuitBreakerConfig.MaxRequests),
		zap.Duration("circuit_timeout", config.CircuitBreakerConfig.Timeout),
	)

	rb.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.CircuitBreakerConfig.MaxRequests,
		Interval:    config.CircuitBreakerConfig.Interval,
		Timeout:     config.CircuitBreakerConfig.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if config.CircuitBreakerConfig.ReadyToTrip != nil {
				return config.CircuitBreakerConfig.ReadyToTrip(Counts{
					Requests:             counts.Requests,
					TotalSuccesses:       counts.TotalSuccesses,
					TotalFailures:        counts.TotalFailures,
					ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
					ConsecutiveFailures:  counts.ConsecutiveFailures,
				})
			}
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || storage.IsNotFound(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("backend", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rb.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	})

	return rb
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

// Name returns the wrapped backend's name.
func (rb *ResilientBackend) Name() string {
	return rb.backend.Name()
}

// Unwrap returns the wrapped backend.
func (rb *ResilientBackend) Unwrap() storage.Backend {
	return rb.backend
}

// State returns the breaker state.
func (rb *ResilientBackend) State() metrics.CircuitState {
	return toCircuitState(rb.cb.State())
}

// execute runs op under the timeout and breaker and maps their errors to storage errors.
func (rb *ResilientBackend) execute(ctx context.Context, op string, fn func(ctx context.Context) ([]byte, error)) ([]byte, time.Duration, error) {
	start := time.Now()

	if rb.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rb.timeout)
		defer cancel()
	}

	result, err := rb.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	elapsed := time.Since(start)

	if err == nil {
		value, _ := result.([]byte)
		return value, elapsed, nil
	}

	switch {
	case storage.IsNotFound(err):
		return nil, elapsed, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		rb.logger.Warn("circuit breaker open, request rejected", zap.String("operation", op))
		err = storage.ErrCircuitOpen
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		rb.logger.Warn("operation timeout",
			zap.String("operation", op),
			zap.Duration("timeout", rb.timeout),
			zap.Duration("elapsed", elapsed),
		)
		err = storage.ErrTimeout
	default:
		rb.logger.Error("operation failed",
			zap.String("operation", op),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
	}

	rb.metrics.RecordError(rb.backend.Name(), op, storage.ClassifyError(err))
	return nil, elapsed, err
}

// Get reads key with timeout and breaker protection.
func (rb *ResilientBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, elapsed, err := rb.execute(ctx, "get", func(ctx context.Context) ([]byte, error) {
		return rb.backend.Get(ctx, key)
	})
	rb.metrics.RecordGet(rb.backend.Name(), err == nil, elapsed)
	return value, err
}

// Set writes key with timeout and breaker protection.
func (rb *ResilientBackend) Set(ctx context.Context, key string, value []byte) error {
	_, elapsed, err := rb.execute(ctx, "set", func(ctx context.Context) ([]byte, error) {
		return nil, rb.backend.Set(ctx, key, value)
	})
	rb.metrics.RecordSet(rb.backend.Name(), err == nil, elapsed)
	return err
}

// Delete removes key with timeout and breaker protection.
func (rb *ResilientBackend) Delete(ctx context.Context, key string) error {
	_, elapsed, err := rb.execute(ctx, "delete", func(ctx context.Context) ([]byte, error) {
		return nil, rb.backend.Delete(ctx, key)
	})
	rb.metrics.RecordDelete(rb.backend.Name(), err == nil, elapsed)
	return err
}

// Ping checks the wrapped backend if it supports it.
func (rb *ResilientBackend) Ping(ctx context.Context) error {
	_, _, err := rb.execute(ctx, "ping", func(ctx context.Context) ([]byte, error) {
		return nil, storage.Ping(ctx, rb.backend)
	})
	return err
}

// Close closes the wrapped backend.
func (rb *ResilientBackend) Close() error {
	return rb.backend.Close()
}
