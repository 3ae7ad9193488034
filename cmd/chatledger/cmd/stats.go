package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display balance, budget, streak and mood",
	Long: `Display the ledger statistics, this month's spending, the pet's mood and
the confirmed totals per category.

Example:
  chatledger stats --profile alice`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openLedger(cmd.Context())
	if err != nil {
		return err
	}
	defer closeLedger(a)

	stats := a.Store.Stats()
	mood := a.Store.Mood()
	accessories := "none"
	if len(mood.Accessories) > 0 {
		accessories = strings.Join(mood.Accessories, ", ")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n=== Ledger ===")
	fmt.Fprintf(w, "Balance:\t%s\n", stats.CurrentBalance.StringFixed(2))
	fmt.Fprintf(w, "Total income:\t%s\n", stats.TotalIncome.StringFixed(2))
	fmt.Fprintf(w, "Total expenses:\t%s\n", stats.TotalExpenses.StringFixed(2))
	fmt.Fprintf(w, "Monthly budget:\t%s\n", stats.MonthlyBudget.StringFixed(2))
	fmt.Fprintf(w, "Left to spend:\t%s\n", a.Store.MoneyLeftToSpend().StringFixed(2))
	fmt.Fprintf(w, "Spent this month:\t%s\n", a.Store.CurrentMonthExpenses().StringFixed(2))
	fmt.Fprintf(w, "Streak:\t%d day(s)\n", stats.Streak)
	fmt.Fprintf(w, "Mood:\t%s (%s)\n", mood.Expression, accessories)

	if breakdown := a.Store.CategoryBreakdown(); len(breakdown) > 0 {
		fmt.Fprintln(w, "\n=== By category ===")
		for _, c := range breakdown {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Total.StringFixed(2), c.Count)
		}
	}
	fmt.Fprintln(w)
	return w.Flush()
}
