package checkpoint

import (
	"context"
	"fmt"
	"sync/atomic"

	"chat-to-rich/pkg/logging"
	"chat-to-rich/pkg/writer"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Persister forces a full snapshot save. *ledger.Store implements it.
type Persister interface {
	Persist()
}

// StatsSource reports the snapshot writer's health. *snapshot.Repository implements it.
type StatsSource interface {
	Stats() writer.AsyncWriterStats
}

// Scheduler saves a full snapshot on a cron schedule, so a ledger that was only
// read for a while still reaches every backend periodically.
type Scheduler struct {
	cron     *cron.Cron
	store    Persister
	stats    StatsSource
	schedule string
	logger   *logging.Logger
	runs     atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStats logs writer statistics after every checkpoint.
func WithStats(s StatsSource) Option {
	return func(sc *Scheduler) {
		sc.stats = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(sc *Scheduler) {
		sc.logger = l
	}
}

// New creates a scheduler for schedule, a standard five-field cron spec or a
// descriptor such as "@every 5m". Call Start to begin.
func New(store Persister, schedule string, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		store:    store,
		schedule: schedule,
		logger:   logging.Component("checkpoint"),
	}
	for _, opt := range opts {
		opt(s)
	}

	log := cronLogger{s.logger.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("checkpoint: invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("checkpoints scheduled", zap.String("schedule", s.schedule))
}

// Stop halts the schedule and waits for a running checkpoint, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run takes one checkpoint now.
func (s *Scheduler) Run() {
	s.store.Persist()
	n := s.runs.Add(1)

	if s.stats == nil {
		s.logger.Debug("checkpoint queued", zap.Int64("run", n))
		return
	}

	st := s.stats.Stats()
	fields := []zap.Field{
		zap.Int64("run", n),
		zap.Int("queue_depth", st.QueueDepth),
		zap.Int64("completed", st.CompletedWrites),
		zap.Int64("coalesced", st.CoalescedWrites),
		zap.Int64("failed", st.FailedWrites),
		zap.Int64("dropped", st.DroppedWrites),
	}
	if !st.Healthy() {
		s.logger.Warn("checkpoint queued, writer unhealthy", append(fields, zap.String("last_error", st.LastError))...)
		return
	}
	s.logger.Info("checkpoint queued", fields...)
}

// Runs returns how many checkpoints have been taken.
func (s *Scheduler) Runs() int64 {
	return s.runs.Load()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
