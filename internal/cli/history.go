package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimitFlag int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent verification runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := store.ListVerifications(historyLimitFlag)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No verification runs recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tVERDICT\tSCORE\tCLAIM\tRUN ID")
		for _, r := range results {
			claim := r.Claim
			if len(claim) > 60 {
				claim = claim[:57] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				r.VerifiedAt.Format("2006-01-02 15:04"), r.Verdict, r.AccuracyScore, claim, r.RunID)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one verification run in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		result, err := store.GetVerification(args[0])
		if err != nil {
			return err
		}

		renderResult(os.Stdout, result, true)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)

	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "maximum runs to list")
	historyCmd.Flags().StringVar(&dbPath, "db", "", "database path (default: from config)")
	showCmd.Flags().StringVar(&dbPath, "db", "", "database path (default: from config)")
}
