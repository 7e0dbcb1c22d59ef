package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/verify"
)

var (
	outJSON       string
	verifyTimeout time.Duration
	quick         bool
	evidenceFile  string
	originalURL   string
	evaluators    []string
	noCache       bool
	dbPath        string
	llmProvider   string
	llmModel      string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a claim against published evidence",
	Long: `Verify runs a claim through the full pipeline:
- Gather evidence (supplied file, configured search service, or both)
- Assess the claim with specialized evaluators in parallel
- Combine reports into one reputation-weighted verdict
- Reconstruct the claim's attribution graph
- Record the outcome and update evaluator reputations

Example:
  veritrail verify "drinking coffee cures headaches"
  veritrail verify "markets crashed" --evaluators financial,generic
  veritrail verify "the study was retracted" --evidence items.json --json report.json
  veritrail verify "quick check this" --quick`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")

	// Run flags
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 5*time.Minute, "overall verification timeout")
	verifyCmd.Flags().BoolVar(&quick, "quick", false, "baseline evaluator only, no attribution graph")
	verifyCmd.Flags().StringVar(&evidenceFile, "evidence", "", "JSON file with pre-gathered evidence items")
	verifyCmd.Flags().StringVar(&originalURL, "original-url", "", "URL of the claim's first publication")
	verifyCmd.Flags().StringSliceVar(&evaluators, "evaluators", nil, "evaluators to run (default: all)")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable cache (force fresh fetches)")
	verifyCmd.Flags().StringVar(&dbPath, "db", "", "database path (default: from config)")

	// LLM flags
	verifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "reasoning provider (openai, anthropic, ollama)")
	verifyCmd.Flags().StringVar(&llmModel, "llm-model", "", "reasoning model name")
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg)

	var items []model.EvidenceItem
	if evidenceFile != "" {
		items, err = readEvidenceFile(evidenceFile)
		if err != nil {
			return err
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.pipeline.Verify(ctx, verify.Request{
		Claim:       claim,
		Evidence:    items,
		OriginalURL: originalURL,
		Evaluators:  evaluators,
		Quick:       quick,
	})
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	renderResult(os.Stdout, result, verbose)

	if outJSON != "" {
		if err := writeJSON(outJSON, result); err != nil {
			return fmt.Errorf("failed to write %s: %w", outJSON, err)
		}
		fmt.Fprintf(os.Stderr, "\nReport written: %s\n", outJSON)
	}

	return nil
}

func applyVerifyFlags(cfg *model.Config) {
	cfg.Output.Verbose = verbose
	cfg.Cache.Enabled = cfg.Cache.Enabled && !noCache
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}

// readEvidenceFile loads a JSON array of evidence items.
func readEvidenceFile(path string) ([]model.EvidenceItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence file: %w", err)
	}
	var items []model.EvidenceItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse evidence file: %w", err)
	}
	return items, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// renderResult prints the verification outcome as text.
func renderResult(w io.Writer, result *model.VerificationResult, verbose bool) {
	rule := strings.Repeat("═", 59)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Verification Result")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Claim:      %s\n", result.Claim)
	fmt.Fprintf(w, "  Verdict:    %s\n", strings.ToUpper(string(result.Verdict)))
	fmt.Fprintf(w, "  Accuracy:   %d/100\n", result.AccuracyScore)
	fmt.Fprintf(w, "  Confidence: %.0f%%\n", result.Confidence*100)
	if result.Consensus != "" {
		fmt.Fprintf(w, "  Consensus:  %s\n", result.Consensus)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Evaluators:")
	for _, r := range result.Reports {
		status := fmt.Sprintf("%3d/100 (%.0f%% confident, %s)",
			r.CredibilityScore, r.Confidence*100, r.Verdict)
		if r.Error {
			status = "failed"
		}
		fmt.Fprintf(w, "    %-22s %s\n", r.EvaluatorName, status)
	}
	fmt.Fprintln(w)

	if len(result.RemainingUncertainties) > 0 {
		fmt.Fprintln(w, "  Remaining uncertainties:")
		for _, u := range result.RemainingUncertainties {
			fmt.Fprintf(w, "    - %s\n", u)
		}
		fmt.Fprintln(w)
	}

	if result.Graph != nil {
		g := result.Graph
		fmt.Fprintf(w, "  Attribution: %d sources, %d links, %d duplicate clusters\n",
			len(g.Nodes), len(g.Edges), len(g.Clusters))
		fmt.Fprintf(w, "  Graph hash:  %s\n", g.Hash)
		if verbose {
			for _, n := range g.Nodes {
				fmt.Fprintf(w, "    [%s] %s (%s)\n", n.Role, n.URL, n.ID)
			}
			for _, e := range g.Edges {
				fmt.Fprintf(w, "    %s -%s-> %s\n", e.From, e.Relationship, e.To)
			}
		}
		fmt.Fprintln(w)
	}

	if result.LedgerRef != "" {
		fmt.Fprintf(w, "  Ledger ref:  %s\n", result.LedgerRef)
	}
	fmt.Fprintf(w, "  Run ID:      %s\n", result.RunID)
	fmt.Fprintln(w, rule)
}
