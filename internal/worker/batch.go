package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/verify"
)

// Verifier runs one claim through the verification pipeline.
type Verifier interface {
	Verify(ctx context.Context, req verify.Request) (*model.VerificationResult, error)
}

// ClaimJob verifies a single claim.
type ClaimJob struct {
	Claim    string
	Quick    bool
	Verifier Verifier
}

// Execute runs the verification.
func (j *ClaimJob) Execute(ctx context.Context) Result {
	result, err := j.Verifier.Verify(ctx, verify.Request{
		Claim: j.Claim,
		Quick: j.Quick,
	})
	return &ClaimResult{
		Claim:  j.Claim,
		Result: result,
		Error:  err,
	}
}

// ClaimResult pairs a claim with its verification outcome.
type ClaimResult struct {
	Claim  string
	Result *model.VerificationResult
	Error  error
}

// GetError returns the error from the verification.
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies multiple claims concurrently.
type BatchProcessor struct {
	verifier    Verifier
	concurrency int
	quick       bool
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(verifier Verifier, concurrency int, quick bool) *BatchProcessor {
	return &BatchProcessor{
		verifier:    verifier,
		concurrency: concurrency,
		quick:       quick,
	}
}

// ProcessClaims verifies claims concurrently and returns one result per
// claim, in completion order.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	for _, claim := range claims {
		pool.Submit(&ClaimJob{
			Claim:    claim,
			Quick:    b.quick,
			Verifier: b.verifier,
		})
	}

	results := pool.Wait()

	claimResults := make([]*ClaimResult, len(results))
	for i, result := range results {
		claimResults[i] = result.(*ClaimResult)
	}

	return claimResults
}

// ProcessFile reads claims from a file and verifies them concurrently.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file, one per line. Blank lines,
// comment lines and duplicates are skipped.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		claims = append(claims, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}
