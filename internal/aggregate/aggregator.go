package aggregate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/veritrail/veritrail/internal/llm"
	"github.com/veritrail/veritrail/internal/model"
)

// ErrAggregationFailed indicates the reasoning service could not combine the
// evaluator reports. This is fatal to the verification request.
var ErrAggregationFailed = errors.New("aggregation failed")

// neutralWeight is used for evaluators with no reputation record.
const neutralWeight = 50.0

// Aggregator combines evaluator reports, weighted by current reputation,
// into one final verdict. Judgment is delegated to the reasoning service;
// the aggregator owns the weighting contract and post-processing.
type Aggregator struct {
	provider llm.Provider
	logger   *zap.Logger
}

// New creates an aggregator.
func New(provider llm.Provider, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{provider: provider, logger: logger}
}

// Aggregate produces the final verdict from evaluator reports. weights maps
// each report's evaluator name to its current reputation score; missing
// entries default to neutral. Disagreement among successful evaluators is
// always surfaced in the remaining uncertainties.
func (a *Aggregator) Aggregate(ctx context.Context, claim string, reports []model.EvaluatorReport, weights map[string]float64) (*model.AggregateResult, error) {
	successful := 0
	for _, r := range reports {
		if !r.Error {
			successful++
		}
	}
	if successful == 0 {
		return &model.AggregateResult{
			Verdict:       model.VerdictUnknown,
			AccuracyScore: 0,
			Confidence:    0,
			Consensus:     "no evaluator produced a judgment",
			RemainingUncertainties: []string{
				"all evaluators failed; the claim could not be assessed",
			},
		}, nil
	}

	filled := make(map[string]float64, len(reports))
	for _, r := range reports {
		if w, ok := weights[r.EvaluatorName]; ok {
			filled[r.EvaluatorName] = w
		} else {
			filled[r.EvaluatorName] = neutralWeight
		}
	}

	verdict, err := a.provider.Aggregate(ctx, llm.AggregateRequest{
		Claim:   claim,
		Reports: reports,
		Weights: filled,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregationFailed, err)
	}

	result := &model.AggregateResult{
		Verdict:                model.Verdict(verdict.Verdict),
		AccuracyScore:          verdict.AccuracyScore,
		Confidence:             verdict.Confidence,
		Consensus:              verdict.Consensus,
		RemainingUncertainties: verdict.RemainingUncertainties,
	}

	if disagreement(reports) && len(result.RemainingUncertainties) == 0 {
		result.RemainingUncertainties = append(result.RemainingUncertainties,
			"evaluators reached conflicting verdicts")
	}
	return result, nil
}

// disagreement reports whether successful evaluators reached more than one
// distinct verdict.
func disagreement(reports []model.EvaluatorReport) bool {
	seen := make(map[model.Verdict]bool)
	for _, r := range reports {
		if r.Error {
			continue
		}
		seen[r.Verdict] = true
	}
	return len(seen) > 1
}
