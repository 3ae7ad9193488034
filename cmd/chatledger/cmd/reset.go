package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored ledger for the profile",
	Long: `Delete the stored snapshot from every storage backend, so the next run
starts with the initial balance and an empty history.

Example:
  chatledger reset --profile alice --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("refusing to reset without --yes")
		}

		a, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer closeLedger(a)

		if err := a.Repo.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", a.Repo.Key())
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
}
