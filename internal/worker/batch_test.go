package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/veritrail/veritrail/internal/model"
	"github.com/veritrail/veritrail/internal/verify"
)

type fakeVerifier struct {
	mu      sync.Mutex
	claims  []string
	failFor map[string]bool
}

func (v *fakeVerifier) Verify(_ context.Context, req verify.Request) (*model.VerificationResult, error) {
	v.mu.Lock()
	v.claims = append(v.claims, req.Claim)
	v.mu.Unlock()
	if v.failFor[req.Claim] {
		return nil, fmt.Errorf("verification failed")
	}
	return &model.VerificationResult{
		RunID:   "run-" + req.Claim,
		Claim:   req.Claim,
		Verdict: model.VerdictTrue,
	}, nil
}

func TestBatchProcessor_ProcessClaims(t *testing.T) {
	v := &fakeVerifier{}
	b := NewBatchProcessor(v, 2, false)

	results := b.ProcessClaims(context.Background(), []string{"a", "b", "c"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Error != nil {
			t.Errorf("unexpected error for %q: %v", r.Claim, r.Error)
		}
		if r.Result == nil || r.Result.Claim != r.Claim {
			t.Errorf("result does not match claim %q", r.Claim)
		}
	}
}

func TestBatchProcessor_ManyClaimsLowConcurrency(t *testing.T) {
	const claims = 25

	input := make([]string, claims)
	for i := range input {
		input[i] = fmt.Sprintf("claim-%d", i)
	}

	v := &fakeVerifier{}
	b := NewBatchProcessor(v, 2, false)

	done := make(chan []*ClaimResult, 1)
	go func() {
		done <- b.ProcessClaims(context.Background(), input)
	}()

	select {
	case results := <-done:
		if len(results) != claims {
			t.Fatalf("expected %d results, got %d", claims, len(results))
		}
		seen := make(map[string]bool, claims)
		for _, r := range results {
			if r.Error != nil {
				t.Errorf("unexpected error for %q: %v", r.Claim, r.Error)
			}
			seen[r.Claim] = true
		}
		if len(seen) != claims {
			t.Errorf("expected %d distinct claims, got %d", claims, len(seen))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("batch stalled with claims exceeding concurrency")
	}
}

func TestBatchProcessor_FailuresIsolated(t *testing.T) {
	v := &fakeVerifier{failFor: map[string]bool{"b": true}}
	b := NewBatchProcessor(v, 2, false)

	results := b.ProcessClaims(context.Background(), []string{"a", "b", "c"})
	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			if r.Claim != "b" {
				t.Errorf("unexpected failed claim %q", r.Claim)
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failure, got %d", failed)
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	b := NewBatchProcessor(&fakeVerifier{}, 2, false)
	results := b.ProcessClaims(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadClaimsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.txt")
	content := "first claim\n\n# a comment\nsecond claim\nfirst claim\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d: %v", len(claims), claims)
	}
	if claims[0] != "first claim" || claims[1] != "second claim" {
		t.Errorf("unexpected claims: %v", claims)
	}
}

func TestReadClaimsFromFile_Missing(t *testing.T) {
	_, err := ReadClaimsFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}
