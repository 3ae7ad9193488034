package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"chat-to-rich/pkg/chat"
	"chat-to-rich/pkg/ledger"
	"chat-to-rich/pkg/parser"

	"github.com/spf13/cobra"
)

var confirmDrafts bool

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to the ledger",
	Long: `Send a message such as "Coffee 4.50" or "Salary 3200". A message with an
amount creates a draft transaction; confirm it to update the balance.

Without arguments, chat reads one message per line from stdin until EOF.

Example:
  chatledger chat "Uber to the airport 23"
  chatledger chat --confirm "Got paid 1500"`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&confirmDrafts, "confirm", false, "confirm drafts immediately")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLedger(a)

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return sendOne(cmd.Context(), out, a.Chat, strings.Join(args, " "))
	}

	fmt.Fprintln(out, "Tell me what you spent or earned. Try:")
	for _, p := range parser.ExamplePrompts {
		fmt.Fprintf(out, "  %s\n", p)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := sendOne(cmd.Context(), out, a.Chat, line); err != nil {
			return err
		}
	}
}

func sendOne(ctx context.Context, out io.Writer, svc *chat.Service, text string) error {
	ex, err := svc.Send(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ex.Reply.Content)
	if ex.Draft == nil {
		return nil
	}

	tx := *ex.Draft
	if confirmDrafts {
		if tx, err = svc.Confirm(tx.ID); err != nil {
			return err
		}
	}
	printTransaction(out, tx)
	return nil
}

func printTransaction(out io.Writer, tx ledger.Transaction) {
	state := "draft"
	if tx.IsConfirmed {
		state = "confirmed"
	}
	sign := "-"
	if tx.Type == ledger.Income {
		sign = "+"
	}
	fmt.Fprintf(out, "  [%s] %s  %s%s  %s  (%s)\n",
		state, tx.Title, sign, tx.Amount.StringFixed(2), tx.Category.DisplayName(), tx.ID)
}
