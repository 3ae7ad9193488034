// Package cmd provides the chatledger commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"chat-to-rich/pkg/app"
	"chat-to-rich/pkg/config"
	"chat-to-rich/pkg/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	envFile string
	profile string
	debug   bool

	cfg    *config.Config
	logger *logging.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatledger",
	Short: "Track spending and income by chatting",
	Long: `chatledger turns short messages like "Coffee 4.50" into draft transactions,
keeps a ledger with a balance, a monthly budget and a daily streak, and shows
how your pet feels about it.

Configuration comes from .env, the YAML file named by CHATLEDGER_CONFIG and
environment variables, in that order.

Example:
  chatledger chat "Lunch with Sam 12.40"
  chatledger confirm 3f6c...
  chatledger stats
  chatledger serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}
		if profile != "" {
			cfg.Profile = profile
		}
		if debug {
			cfg.Log.Level = "debug"
		}

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logging.SetGlobal(logger)
		return nil
	},
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if logger != nil {
		_ = logger.Sync()
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default is .env when present)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "ledger profile, overrides PROFILE")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(discardCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resetCmd)
}

// openLedger builds the app from the loaded configuration and restores the snapshot.
func openLedger(ctx context.Context) (*app.App, error) {
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := a.Load(ctx); err != nil {
		closeLedger(a)
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return a, nil
}

func closeLedger(a *app.App) {
	if err := a.Close(); err != nil {
		logger.Warn("failed to close storage", zap.Error(err))
	}
}
