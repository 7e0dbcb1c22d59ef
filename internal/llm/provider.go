package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veritrail/veritrail/internal/model"
)

// Provider defines the interface to the external reasoning service. It is
// the only place judgment happens; evaluators and the aggregator own scoring
// heuristics and weighting but never fabricate verdicts themselves.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Judge scores a claim against evidence from one evaluator perspective.
	Judge(ctx context.Context, req JudgeRequest) (*Judgment, error)

	// Aggregate combines evaluator reports into one final verdict,
	// honoring the reputation weights supplied by the caller.
	Aggregate(ctx context.Context, req AggregateRequest) (*AggregateVerdict, error)

	// IsAvailable checks if the provider is properly configured and accessible.
	IsAvailable(ctx context.Context) bool
}

// JudgeRequest contains the input for a single evaluator judgment.
type JudgeRequest struct {
	// Profile identifies the evaluator perspective.
	Profile string

	// Persona is the profile-specific prompt context.
	Persona string

	// Claim is the assertion being assessed.
	Claim string

	// Evidence is the evaluator's scored copy of the evidence list.
	Evidence []model.EvidenceItem

	// Model overrides the configured model when non-empty.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int
}

// Judgment is the structured reply to a Judge call.
type Judgment struct {
	CredibilityScore int      `json:"credibility_score"`
	Confidence       float64  `json:"confidence"`
	Verdict          string   `json:"verdict"`
	Summary          string   `json:"summary"`
	Reasoning        string   `json:"reasoning"`
	KeyFindings      []string `json:"key_findings"`
	Concerns         []string `json:"concerns"`
}

// AggregateRequest contains the input for final verdict aggregation.
type AggregateRequest struct {
	Claim string

	// Reports are the evaluator reports, degraded ones included.
	Reports []model.EvaluatorReport

	// Weights maps evaluator name to its current reputation score (0-100).
	Weights map[string]float64

	Model     string
	MaxTokens int
}

// AggregateVerdict is the structured reply to an Aggregate call.
type AggregateVerdict struct {
	Verdict                string   `json:"verdict"`
	AccuracyScore          int      `json:"accuracy_score"`
	Confidence             float64  `json:"confidence"`
	Consensus              string   `json:"consensus"`
	RemainingUncertainties []string `json:"remaining_uncertainties"`
}

// Config holds reasoning-service provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", "ollama".
	Provider string

	// Model name (provider-specific).
	Model string

	// APIKey for OpenAI/Anthropic.
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama).
	BaseURL string

	// Timeout for API requests, in seconds.
	Timeout int

	// MaxTokens for response generation.
	MaxTokens int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Timeout:   60,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	return Config{
		Provider:  modelConfig.Provider,
		Model:     modelConfig.Model,
		APIKey:    modelConfig.APIKey,
		BaseURL:   modelConfig.BaseURL,
		Timeout:   modelConfig.Timeout,
		MaxTokens: modelConfig.MaxTokens,
	}
}

const judgeSystemPrompt = `You are an evidence analyst assessing whether a claim is supported by the supplied sources. Respond with a single JSON object and nothing else:
{"credibility_score": <0-100>, "confidence": <0.0-1.0>, "verdict": "true"|"false"|"mixed"|"unknown", "summary": "<2-3 sentences>", "reasoning": "<how the evidence supports the verdict>", "key_findings": ["..."], "concerns": ["..."]}
Only reference the supplied sources. If the evidence is insufficient, say so and use verdict "unknown".`

// BuildJudgePrompt constructs the user prompt for a Judge call.
func BuildJudgePrompt(req JudgeRequest) string {
	var b strings.Builder

	if req.Persona != "" {
		b.WriteString(req.Persona)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Claim under assessment:\n%s\n\nEvidence (%d sources, pre-scored 0-100 for source quality):\n",
		req.Claim, len(req.Evidence))

	for i, ev := range req.Evidence {
		fmt.Fprintf(&b, "%d. [quality %d] %s\n   %s\n", i+1, ev.DomainScore, ev.URL, ev.Title)
		if ev.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", truncate(ev.Snippet, 400))
		}
		if ev.IsOriginal {
			b.WriteString("   (claimed original source)\n")
		}
	}
	if len(req.Evidence) == 0 {
		b.WriteString("(no evidence retrieved)\n")
	}

	b.WriteString("\nAssess the claim against this evidence and reply with the JSON object only.")
	return b.String()
}

const aggregateSystemPrompt = `You combine independent evaluator reports into one final verdict. Evaluators with higher reputation carry proportionally more weight; more evidence links and stronger source quality increase confidence. Disagreement among evaluators must be surfaced as remaining uncertainties, never dropped. Respond with a single JSON object and nothing else:
{"verdict": "true"|"false"|"mixed"|"unknown", "accuracy_score": <0-100>, "confidence": <0.0-1.0>, "consensus": "<summary of agreement>", "remaining_uncertainties": ["..."]}`

// BuildAggregatePrompt constructs the user prompt for an Aggregate call.
func BuildAggregatePrompt(req AggregateRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Claim:\n%s\n\nEvaluator reports (%d):\n", req.Claim, len(req.Reports))

	for _, r := range req.Reports {
		weight := req.Weights[r.EvaluatorName]
		if r.Error {
			fmt.Fprintf(&b, "- %s (reputation %.0f): FAILED, no judgment available\n", r.EvaluatorName, weight)
			continue
		}
		fmt.Fprintf(&b, "- %s (reputation %.0f): verdict=%s credibility=%d confidence=%.2f evidence_links=%d\n  %s\n",
			r.EvaluatorName, weight, r.Verdict, r.CredibilityScore, r.Confidence,
			len(r.EvidenceLinks), truncate(r.Summary, 300))
	}

	b.WriteString("\nWeigh higher-reputation evaluators more heavily and reply with the JSON object only.")
	return b.String()
}

// ParseJudgment extracts and validates the JSON judgment from a model reply.
func ParseJudgment(text string) (*Judgment, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var j Judgment
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("parse judgment: %w", err)
	}

	j.CredibilityScore = clampInt(j.CredibilityScore, 0, 100)
	j.Confidence = clampFloat(j.Confidence, 0, 1)
	j.Verdict = normalizeVerdict(j.Verdict)
	return &j, nil
}

// ParseAggregateVerdict extracts and validates the JSON aggregation from a
// model reply.
func ParseAggregateVerdict(text string) (*AggregateVerdict, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var v AggregateVerdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("parse aggregate verdict: %w", err)
	}

	v.AccuracyScore = clampInt(v.AccuracyScore, 0, 100)
	v.Confidence = clampFloat(v.Confidence, 0, 1)
	v.Verdict = normalizeVerdict(v.Verdict)
	return &v, nil
}

// extractJSON pulls the outermost JSON object out of a model reply that may
// carry surrounding prose or code fences.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in reply")
	}
	return text[start : end+1], nil
}

func normalizeVerdict(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true":
		return string(model.VerdictTrue)
	case "false":
		return string(model.VerdictFalse)
	case "mixed":
		return string(model.VerdictMixed)
	default:
		return string(model.VerdictUnknown)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
