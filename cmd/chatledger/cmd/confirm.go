package cmd

import (
	"fmt"

	"chat-to-rich/pkg/ledger"

	"github.com/spf13/cobra"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <id>",
	Short: "Confirm a draft transaction",
	Long: `Confirm a draft so it counts toward the balance, the totals and the streak.
Confirming an already confirmed transaction changes nothing.

Example:
  chatledger confirm 3f6c2a9e-...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer closeLedger(a)

		tx, err := a.Chat.Confirm(args[0])
		if err != nil {
			return err
		}
		printTransaction(cmd.OutOrStdout(), tx)
		printBalance(cmd, a.Store.Stats())
		return nil
	},
}

var discardCmd = &cobra.Command{
	Use:   "discard <id>",
	Short: "Delete a transaction",
	Long: `Delete a transaction. If it was confirmed, its amount is taken back out of
the balance and totals.

Example:
  chatledger discard 3f6c2a9e-...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openLedger(cmd.Context())
		if err != nil {
			return err
		}
		defer closeLedger(a)

		if err := a.Chat.Discard(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Discarded %s\n", args[0])
		printBalance(cmd, a.Store.Stats())
		return nil
	},
}

func printBalance(cmd *cobra.Command, stats ledger.UserStats) {
	fmt.Fprintf(cmd.OutOrStdout(), "Balance: %s\n", stats.CurrentBalance.StringFixed(2))
}
