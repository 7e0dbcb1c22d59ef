package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrail/veritrail/internal/model"
)

func TestParseJudgment(t *testing.T) {
	reply := `Here is my assessment:
{"credibility_score": 72, "confidence": 0.85, "verdict": "mixed", "summary": "Partially supported.", "reasoning": "Two sources confirm, one contradicts.", "key_findings": ["original source found"], "concerns": ["single primary source"]}`

	j, err := ParseJudgment(reply)
	require.NoError(t, err)

	assert.Equal(t, 72, j.CredibilityScore)
	assert.Equal(t, 0.85, j.Confidence)
	assert.Equal(t, "mixed", j.Verdict)
	assert.Equal(t, []string{"original source found"}, j.KeyFindings)
}

func TestParseJudgment_ClampsOutOfRange(t *testing.T) {
	reply := `{"credibility_score": 180, "confidence": 1.7, "verdict": "TRUE"}`

	j, err := ParseJudgment(reply)
	require.NoError(t, err)

	assert.Equal(t, 100, j.CredibilityScore)
	assert.Equal(t, 1.0, j.Confidence)
	assert.Equal(t, string(model.VerdictTrue), j.Verdict)
}

func TestParseJudgment_UnknownVerdictNormalized(t *testing.T) {
	j, err := ParseJudgment(`{"verdict": "probably"}`)
	require.NoError(t, err)
	assert.Equal(t, string(model.VerdictUnknown), j.Verdict)
}

func TestParseJudgment_NoJSON(t *testing.T) {
	_, err := ParseJudgment("I cannot answer that.")
	assert.Error(t, err)
}

func TestParseAggregateVerdict(t *testing.T) {
	reply := "```json\n" + `{"verdict": "false", "accuracy_score": 15, "confidence": 0.9, "consensus": "Three of four evaluators judged the claim false.", "remaining_uncertainties": ["financial evaluator disagreed"]}` + "\n```"

	v, err := ParseAggregateVerdict(reply)
	require.NoError(t, err)

	assert.Equal(t, string(model.VerdictFalse), v.Verdict)
	assert.Equal(t, 15, v.AccuracyScore)
	assert.Equal(t, 0.9, v.Confidence)
	assert.Equal(t, []string{"financial evaluator disagreed"}, v.RemainingUncertainties)
}

func TestBuildJudgePrompt(t *testing.T) {
	req := JudgeRequest{
		Profile: "scientific",
		Persona: "You weigh peer-reviewed sources heavily.",
		Claim:   "coffee cures headaches",
		Evidence: []model.EvidenceItem{
			{URL: "https://journal.example.org/study", Title: "Caffeine and headache relief", DomainScore: 88, IsOriginal: true},
			{URL: "https://blog.example.com/post", Title: "My coffee story", Snippet: "anecdote", DomainScore: 20},
		},
	}

	prompt := BuildJudgePrompt(req)
	assert.Contains(t, prompt, "coffee cures headaches")
	assert.Contains(t, prompt, "peer-reviewed")
	assert.Contains(t, prompt, "[quality 88]")
	assert.Contains(t, prompt, "(claimed original source)")
}

func TestBuildAggregatePrompt_IncludesWeightsAndFailures(t *testing.T) {
	req := AggregateRequest{
		Claim: "the claim",
		Reports: []model.EvaluatorReport{
			{EvaluatorName: "scientific", Verdict: model.VerdictFalse, CredibilityScore: 20, Confidence: 0.9},
			model.FailedReport("political", "timeout"),
		},
		Weights: map[string]float64{"scientific": 74, "political": 50},
	}

	prompt := BuildAggregatePrompt(req)
	assert.Contains(t, prompt, "reputation 74")
	assert.Contains(t, prompt, "FAILED")
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "mystery"})
	assert.Error(t, err)
}
