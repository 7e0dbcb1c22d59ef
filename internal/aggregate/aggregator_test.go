package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/llm"
	"github.com/veritrail/veritrail/internal/model"
)

type stubProvider struct {
	verdict *llm.AggregateVerdict
	err     error
	lastReq llm.AggregateRequest
	called  bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Judge(context.Context, llm.JudgeRequest) (*llm.Judgment, error) {
	return nil, errors.New("not used")
}

func (s *stubProvider) Aggregate(_ context.Context, req llm.AggregateRequest) (*llm.AggregateVerdict, error) {
	s.called = true
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	v := *s.verdict
	return &v, nil
}

func (s *stubProvider) IsAvailable(context.Context) bool { return true }

func report(name string, verdict model.Verdict, conf float64) model.EvaluatorReport {
	return model.EvaluatorReport{
		EvaluatorName:    name,
		CredibilityScore: 60,
		Confidence:       conf,
		Verdict:          verdict,
	}
}

func TestAggregate_DelegatesWithWeights(t *testing.T) {
	stub := &stubProvider{verdict: &llm.AggregateVerdict{
		Verdict:       "false",
		AccuracyScore: 20,
		Confidence:    0.85,
		Consensus:     "most evaluators judged the claim false",
	}}
	a := New(stub, nil)

	reports := []model.EvaluatorReport{
		report("Scientific Evaluator", model.VerdictFalse, 0.9),
		report("Political Evaluator", model.VerdictFalse, 0.8),
	}
	weights := map[string]float64{"Scientific Evaluator": 72}

	result, err := a.Aggregate(context.Background(), "the claim", reports, weights)
	require.NoError(t, err)

	assert.Equal(t, model.VerdictFalse, result.Verdict)
	assert.Equal(t, 20, result.AccuracyScore)
	assert.Equal(t, 72.0, stub.lastReq.Weights["Scientific Evaluator"])
	assert.Equal(t, 50.0, stub.lastReq.Weights["Political Evaluator"],
		"missing reputation defaults to neutral")
}

func TestAggregate_ProviderFailureIsFatal(t *testing.T) {
	a := New(&stubProvider{err: errors.New("service unavailable")}, nil)

	_, err := a.Aggregate(context.Background(), "claim",
		[]model.EvaluatorReport{report("X", model.VerdictTrue, 0.5)}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAggregationFailed)
}

func TestAggregate_DisagreementSurfaced(t *testing.T) {
	stub := &stubProvider{verdict: &llm.AggregateVerdict{
		Verdict: "mixed", AccuracyScore: 50, Confidence: 0.5,
	}}
	a := New(stub, nil)

	reports := []model.EvaluatorReport{
		report("A", model.VerdictTrue, 0.8),
		report("B", model.VerdictFalse, 0.7),
	}

	result, err := a.Aggregate(context.Background(), "claim", reports, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.RemainingUncertainties,
		"conflicting verdicts are never silently dropped")
}

func TestAggregate_AllFailedShortCircuits(t *testing.T) {
	stub := &stubProvider{verdict: &llm.AggregateVerdict{}}
	a := New(stub, nil)

	reports := []model.EvaluatorReport{
		model.FailedReport("A", "boom"),
		model.FailedReport("B", "boom"),
	}

	result, err := a.Aggregate(context.Background(), "claim", reports, nil)
	require.NoError(t, err)

	assert.False(t, stub.called, "reasoning service not consulted without judgments")
	assert.Equal(t, model.VerdictUnknown, result.Verdict)
	assert.NotEmpty(t, result.RemainingUncertainties)
}

func TestAggregate_KeepsProviderUncertainties(t *testing.T) {
	stub := &stubProvider{verdict: &llm.AggregateVerdict{
		Verdict:                "true",
		AccuracyScore:          80,
		Confidence:             0.9,
		RemainingUncertainties: []string{"original source not yet archived"},
	}}
	a := New(stub, nil)

	result, err := a.Aggregate(context.Background(), "claim",
		[]model.EvaluatorReport{report("A", model.VerdictTrue, 0.9)}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"original source not yet archived"}, result.RemainingUncertainties)
}
