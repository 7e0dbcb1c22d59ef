package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/veritrail/veritrail/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchQuick   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify multiple claims from a file in parallel",
	Long: `Batch verifies multiple claims concurrently:
- Read claims from input file (one per line, # starts a comment)
- Verify claims in parallel with configurable worker count
- Each verification runs its own concurrent evaluator panel
- Write one JSON report per claim

Example:
  veritrail batch claims.txt
  veritrail batch claims.txt --concurrency 10 --output-dir ./reports
  veritrail batch claims.txt --quick --timeout 10m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent verifications")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./veritrail-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchQuick, "quick", false, "baseline evaluator only, no attribution graphs")
	batchCmd.Flags().StringVar(&dbPath, "db", "", "database path (default: from config)")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "reasoning provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "reasoning model name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyVerifyFlags(cfg)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintf(os.Stderr, "Batch input: %s (workers: %d)\n\n", file, concurrency)

	processor := worker.NewBatchProcessor(a.pipeline, concurrency, batchQuick)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return err
	}

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Claim, r.Error)
			continue
		}
		succeeded++
		path := filepath.Join(outputDir, r.Result.RunID+".json")
		if err := writeJSON(path, r.Result); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: write report: %v\n", r.Claim, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%s)\n", r.Claim, r.Result.Verdict, path)
	}

	fmt.Fprintf(os.Stderr, "\nDone: %d verified, %d failed\n", succeeded, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d claims failed", failed, len(results))
	}
	return nil
}
