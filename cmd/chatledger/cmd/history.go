package cmd

import (
	"fmt"

	"chat-to-rich/pkg/ledger"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyTxs   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent chat messages or transactions",
	Long: `Show the most recent chat messages, oldest first. With --transactions, show
the most recent confirmed transactions instead, newest first.

Example:
  chatledger history --limit 20
  chatledger history --transactions`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of entries to show")
	historyCmd.Flags().BoolVar(&historyTxs, "transactions", false, "show confirmed transactions")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLedger(a)

	out := cmd.OutOrStdout()
	if historyTxs {
		for _, tx := range a.Store.RecentTransactions(historyLimit) {
			printTransaction(out, tx)
		}
		return nil
	}

	messages := a.Store.ChatHistory()
	if historyLimit > 0 && len(messages) > historyLimit {
		messages = messages[len(messages)-historyLimit:]
	}
	for _, m := range messages {
		ts := m.Timestamp.Local().Format("Jan 2 15:04")
		switch m.Type {
		case ledger.MessageUser:
			fmt.Fprintf(out, "%s  you: %s\n", ts, m.Content)
		case ledger.MessageSystem:
			fmt.Fprintf(out, "%s  pet: %s\n", ts, m.Content)
		case ledger.MessageTransactionCard:
			if m.Transaction != nil {
				printTransaction(out, *m.Transaction)
			}
		}
	}
	return nil
}
