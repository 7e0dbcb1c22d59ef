package model

import "time"

// Verdict is the judgment an evaluator or the aggregator reaches on a claim.
type Verdict string

const (
	VerdictTrue    Verdict = "true"
	VerdictFalse   Verdict = "false"
	VerdictMixed   Verdict = "mixed"
	VerdictUnknown Verdict = "unknown"
)

// EvaluatorReport is the output of a single evaluator run.
type EvaluatorReport struct {
	EvaluatorName    string   `json:"evaluator_name"`
	CredibilityScore int      `json:"credibility_score"` // 0-100
	Confidence       float64  `json:"confidence"`        // 0-1
	Verdict          Verdict  `json:"verdict"`
	Summary          string   `json:"summary,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`
	EvidenceLinks    []string `json:"evidence_links,omitempty"`
	KeyFindings      []string `json:"key_findings,omitempty"`
	Concerns         []string `json:"concerns,omitempty"`
	Error            bool     `json:"error,omitempty"` // True when the evaluator failed and this is a degraded report
}

// FailedReport builds the synthetic degraded report the runner substitutes
// when an evaluator fails.
func FailedReport(evaluatorName, concern string) EvaluatorReport {
	return EvaluatorReport{
		EvaluatorName:    evaluatorName,
		CredibilityScore: 0,
		Confidence:       0,
		Verdict:          VerdictUnknown,
		Summary:          "evaluator failed",
		Concerns:         []string{concern},
		Error:            true,
	}
}

// AggregateResult is the single combined verdict produced from all
// evaluator reports.
type AggregateResult struct {
	Verdict                Verdict  `json:"verdict"`
	AccuracyScore          int      `json:"accuracy_score"` // 0-100
	Confidence             float64  `json:"confidence"`     // 0-1
	Consensus              string   `json:"consensus,omitempty"`
	RemainingUncertainties []string `json:"remaining_uncertainties,omitempty"`
}

// VerificationResult is what the orchestrator returns to callers.
type VerificationResult struct {
	RunID                  string            `json:"run_id"`
	Claim                  string            `json:"claim"`
	Verdict                Verdict           `json:"verdict"`
	AccuracyScore          int               `json:"accuracy_score"`
	Confidence             float64           `json:"confidence"`
	Consensus              string            `json:"consensus,omitempty"`
	RemainingUncertainties []string          `json:"remaining_uncertainties,omitempty"`
	Reports                []EvaluatorReport `json:"reports"`
	Graph                  *Graph            `json:"graph,omitempty"`
	LedgerRef              string            `json:"ledger_ref,omitempty"`
	VerifiedAt             time.Time         `json:"verified_at"`
}

// ReputationEntry is one step in an evaluator's score history.
type ReputationEntry struct {
	Timestamp time.Time `json:"timestamp"`
	OldScore  float64   `json:"old_score"`
	NewScore  float64   `json:"new_score"`
	Delta     float64   `json:"delta"`
	Reason    string    `json:"reason"`
}

// ReputationStats accumulates lifetime counters for an evaluator.
type ReputationStats struct {
	TotalRuns     int `json:"total_runs"`
	Agreements    int `json:"agreements"`
	Disagreements int `json:"disagreements"`
	Failures      int `json:"failures"`
}

// ReputationRecord is the long-lived trust record kept per evaluator.
// Created lazily on first use with a neutral score; never deleted.
type ReputationRecord struct {
	EvaluatorName     string            `json:"evaluator_name"`
	EvaluatorType     string            `json:"evaluator_type"`
	CurrentScore      float64           `json:"current_score"` // Bounded to [0,100]
	Stats             ReputationStats   `json:"stats"`
	History           []ReputationEntry `json:"history"` // Most recent 100 entries
	LastDecayApplied  time.Time         `json:"last_decay_applied"`
	DecayRate         float64           `json:"decay_rate"`        // Fraction of deviation removed per period
	DecayPeriodDays   int               `json:"decay_period_days"`
	Peak              float64           `json:"peak"`
	Lowest            float64           `json:"lowest"`
	FirstVerification time.Time         `json:"first_verification"`
}
