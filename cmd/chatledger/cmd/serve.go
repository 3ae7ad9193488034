package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-to-rich/pkg/api"
	"chat-to-rich/pkg/checkpoint"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger over HTTP",
	Long: `Serve the chat, transaction, stats and mood endpoints over HTTP.

The ledger is restored from storage on start, checkpointed on the configured
schedule and saved once more on shutdown (SIGINT or SIGTERM).

Example:
  HTTP_ADDR=:9090 chatledger serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer closeLedger(a)

	opts := api.Options{
		Writer: a.Repo,
		Probe:  a.Probe,
		Logger: logger.Named("api"),
	}
	if a.Registry != nil {
		opts.Gatherer = a.Registry
		opts.Registerer = a.Registry
	}
	server, err := api.NewServer(a.Chat, api.ServerConfig{
		Address:      cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}, opts)
	if err != nil {
		return err
	}

	var scheduler *checkpoint.Scheduler
	if cfg.Checkpoint.Schedule != "" {
		scheduler, err = checkpoint.New(a.Store, cfg.Checkpoint.Schedule,
			checkpoint.WithStats(a.Repo),
			checkpoint.WithLogger(logger.Named("checkpoint")),
		)
		if err != nil {
			return err
		}
	}

	if err := server.Start(); err != nil {
		return err
	}
	if scheduler != nil {
		scheduler.Start()
	}
	logger.Info("chatledger serving", zap.String("addr", cfg.HTTP.Addr), zap.String("profile", cfg.Profile))

	<-ctx.Done()
	logger.Info("shutting down")

	timeout := cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("checkpoint still running at shutdown", zap.Error(err))
		}
	}
	a.Store.Persist()
	return nil
}
