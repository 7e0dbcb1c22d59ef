package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/veritrail/veritrail/internal/logging"
	"github.com/veritrail/veritrail/internal/storage"
)

// reputationCmd represents the reputation command
var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Inspect evaluator reputation records",
	Long: `Inspect the long-lived trust records kept per evaluator.

Reputation starts at the neutral score of 50, rises when an evaluator
agrees with final verdicts, falls when it disagrees, and drifts back
toward neutral over idle periods.`,
}

var reputationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all evaluators by reputation",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListReputation()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No reputation records yet. Run a verification first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EVALUATOR\tTYPE\tSCORE\tRUNS\tAGREED\tDISAGREED\tFAILED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%d\t%d\t%d\n",
				r.EvaluatorName, r.EvaluatorType, r.CurrentScore,
				r.Stats.TotalRuns, r.Stats.Agreements, r.Stats.Disagreements, r.Stats.Failures)
		}
		return w.Flush()
	},
}

var reputationShowCmd = &cobra.Command{
	Use:   "show <evaluator>",
	Short: "Show one evaluator's reputation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		rec, found, err := store.LoadReputation(args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no reputation record for %q", args[0])
		}

		fmt.Printf("Evaluator: %s (%s)\n", rec.EvaluatorName, rec.EvaluatorType)
		fmt.Printf("Score:     %.1f (peak %.1f, lowest %.1f)\n", rec.CurrentScore, rec.Peak, rec.Lowest)
		fmt.Printf("Runs:      %d (%d agreed, %d disagreed, %d failed)\n",
			rec.Stats.TotalRuns, rec.Stats.Agreements, rec.Stats.Disagreements, rec.Stats.Failures)
		if !rec.FirstVerification.IsZero() {
			fmt.Printf("Since:     %s\n", rec.FirstVerification.Format("2006-01-02"))
		}

		if len(rec.History) > 0 {
			fmt.Println("\nRecent history:")
			for _, e := range rec.History {
				fmt.Printf("  %s  %+.1f → %.1f  (%s)\n",
					e.Timestamp.Format("2006-01-02 15:04"), e.Delta, e.NewScore, e.Reason)
			}
		}
		return nil
	},
}

func openStore() (*storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.Storage.Path, logger)
}

func init() {
	rootCmd.AddCommand(reputationCmd)
	reputationCmd.AddCommand(reputationListCmd)
	reputationCmd.AddCommand(reputationShowCmd)

	reputationCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: from config)")
}
