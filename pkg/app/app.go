// Package app assembles a ledger from configuration: storage backends behind circuit
// breakers, the snapshot repository, the store, the parser and the chat service.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-to-rich/pkg/chat"
	"chat-to-rich/pkg/config"
	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/metrics"
	promcollector "chat-to-rich/pkg/metrics/prometheus"
	"chat-to-rich/pkg/parser"
	"chat-to-rich/pkg/resilience"
	"chat-to-rich/pkg/snapshot"
	"chat-to-rich/pkg/storage"
	"chat-to-rich/pkg/storage/bolt"
	"chat-to-rich/pkg/storage/chain"
	"chat-to-rich/pkg/storage/memory"
	"chat-to-rich/pkg/storage/redis"
	"chat-to-rich/pkg/storage/sqlstore"
	"chat-to-rich/pkg/writer"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// App is a fully wired ledger.
type App struct {
	Config *config.Config
	Logger *logging.Logger

	Metrics  metrics.MetricsCollector
	Registry *prometheus.Registry // nil when metrics are disabled

	Backends []*resilience.ResilientBackend
	Repo     *snapshot.Repository
	Store    *ledger.Store
	Parser   *parser.Parser
	Chat     *chat.Service
}

// New opens every configured backend and builds the ledger on top. The store is not
// loaded yet; call Load. On error, anything already opened is closed.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Global()
	}
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.NoOpCollector{}}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		pc := promcollector.NewPrometheusCollector(cfg.Metrics.Namespace)
		if err := pc.Register(a.Registry); err != nil {
			return nil, fmt.Errorf("app: register metrics: %w", err)
		}
		a.Metrics = pc
	}

	key, err := cfg.SnapshotKey()
	if err != nil {
		return nil, err
	}
	budget, err := cfg.Budget()
	if err != nil {
		return nil, err
	}

	p := parser.NewDefault()
	if cfg.Parser.RulesPath != "" {
		rules, err := parser.LoadRules(cfg.Parser.RulesPath)
		if err != nil {
			return nil, err
		}
		if p, err = parser.New(rules); err != nil {
			return nil, err
		}
	}
	a.Parser = p

	if len(cfg.Storage.Backends) == 0 {
		return nil, fmt.Errorf("%w: no storage backends configured", storage.ErrInvalidValue)
	}
	members := make([]storage.Backend, 0, len(cfg.Storage.Backends))
	for _, bc := range cfg.Storage.Backends {
		b, err := OpenBackend(bc)
		if err != nil {
			closeAll(members)
			return nil, fmt.Errorf("app: open %s backend: %w", bc.DisplayName(), err)
		}
		rb := resilience.NewResilientBackendWithMetrics(b, resilienceConfig(cfg.Resilience, bc), a.Metrics)
		a.Backends = append(a.Backends, rb)
		members = append(members, rb)
		logger.Info("storage backend ready", zap.String("backend", rb.Name()), zap.String("driver", string(bc.Driver)))
	}

	var backend storage.Backend = members[0]
	if len(members) > 1 {
		c, err := chain.New(members...)
		if err != nil {
			closeAll(members)
			return nil, err
		}
		backend = c
	}

	a.Repo, err = snapshot.New(backend, snapshot.Config{
		Key:     key,
		Writer:  writer.AsyncWriterConfig{WriteTimeout: cfg.Snapshot.WriteTimeout},
		Metrics: a.Metrics,
		Logger:  logger.Named("snapshot"),
	})
	if err != nil {
		closeAll(members)
		return nil, err
	}

	a.Store = ledger.NewStore(ledger.Config{
		Persister:     a.Repo,
		MonthlyBudget: budget,
		Metrics:       a.Metrics,
		Logger:        logger.Named("ledger"),
	})
	a.Chat = chat.NewService(a.Store, a.Parser,
		chat.WithReplyDelay(cfg.Parser.ReplyDelay),
		chat.WithLogger(logger.Named("chat")),
	)
	return a, nil
}

// OpenBackend opens the backend bc describes.
func OpenBackend(bc storage.BackendConfig) (storage.Backend, error) {
	if err := bc.Validate(); err != nil {
		return nil, err
	}
	name := bc.DisplayName()

	switch bc.Driver {
	case storage.DriverMemory:
		return memory.NewMemoryBackend(memory.MemoryBackendConfig{Name: name}), nil
	case storage.DriverBolt:
		return bolt.NewBoltBackend(bolt.BoltBackendConfig{Name: name, Path: bc.Path})
	case storage.DriverRedis:
		rc := redis.DefaultRedisBackendConfig()
		rc.Name = name
		rc.Addr = bc.Addr
		return redis.NewRedisBackend(rc)
	case storage.DriverSQLite:
		return sqlstore.NewSQLiteBackend(name, bc.Path)
	case storage.DriverPostgres:
		return sqlstore.NewPostgresBackend(name, bc.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", storage.ErrInvalidValue, bc.Driver)
	}
}

func resilienceConfig(rc config.ResilienceConfig, bc storage.BackendConfig) resilience.ResilientConfig {
	c := resilience.DefaultResilientConfig()
	if rc.Timeout > 0 {
		c = c.WithTimeout(rc.Timeout)
	}
	if bc.Timeout > 0 {
		c = c.WithTimeout(bc.Timeout)
	}
	if rc.OpenTimeout > 0 {
		c = c.WithCircuitBreakerTimeout(rc.OpenTimeout)
	}
	if rc.FailureThreshold > 0 {
		c = c.WithFailureThreshold(rc.FailureThreshold)
	}
	return c
}

func closeAll(backends []storage.Backend) {
	for _, b := range backends {
		_ = b.Close()
	}
}

// Load restores the stored snapshot. A missing or malformed snapshot leaves a fresh
// ledger and is not an error; a backend failure is.
func (a *App) Load(ctx context.Context) error {
	err := a.Store.Load(ctx)
	if errors.Is(err, snapshot.ErrMalformed) {
		return nil
	}
	return err
}

// Probe pings every backend that supports it and joins the failures.
func (a *App) Probe(ctx context.Context) error {
	var errs []error
	for _, b := range a.Backends {
		if err := storage.Ping(ctx, b); err != nil {
			errs = append(errs, storage.WrapError(err, b.Name(), "ping"))
		}
	}
	return errors.Join(errs...)
}

// Close waits for pending snapshot writes up to the configured flush timeout,
// then closes the writer and every backend.
func (a *App) Close() error {
	timeout := a.Config.Snapshot.FlushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if err := a.Repo.Flush(timeout); err != nil {
		a.Logger.Warn("pending snapshot writes did not finish", zap.Error(err))
	}
	return a.Repo.Close()
}
