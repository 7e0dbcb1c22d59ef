package evaluator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/veritrail/veritrail/internal/llm"
	"github.com/veritrail/veritrail/internal/model"
)

// Evaluator is an independent scoring/judgment unit with a fixed bias
// profile over evidence. Assess is a pure transformation of claim+evidence
// plus one call to the external reasoning service; it never mutates the
// shared evidence list.
type Evaluator interface {
	// Name returns the evaluator's registry name.
	Name() string

	// DisplayName returns the name stamped on reports.
	DisplayName() string

	// Type classifies the evaluator ("builtin" or "baseline").
	Type() string

	// Assess scores the claim against evidence. A reasoning-service
	// failure is returned as an error, never silently fabricated into
	// a result.
	Assess(ctx context.Context, claim string, evidence []model.EvidenceItem) (model.EvaluatorReport, error)
}

// GenericName is the neutral baseline evaluator used for quick verification.
const GenericName = "generic"

// Registry holds the closed set of evaluator profiles.
type Registry struct {
	evaluators map[string]Evaluator
}

// NewRegistry builds the built-in profile set against the given reasoning
// provider.
func NewRegistry(provider llm.Provider) *Registry {
	r := &Registry{evaluators: make(map[string]Evaluator)}
	for _, p := range builtinProfiles() {
		p.provider = provider
		r.evaluators[p.name] = p
	}
	return r
}

// Get returns the named evaluator, or false if unknown.
func (r *Registry) Get(name string) (Evaluator, bool) {
	e, ok := r.evaluators[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Names returns all registered evaluator names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scoreEvidence returns a per-call copy of the evidence with the profile's
// domain heuristics applied to each item's quality score. The input slice is
// never modified.
func (p *profile) scoreEvidence(evidence []model.EvidenceItem) []model.EvidenceItem {
	scored := make([]model.EvidenceItem, len(evidence))
	copy(scored, evidence)

	for i := range scored {
		host := scored[i].Host()
		score := scored[i].DomainScore

		if matchesDomain(host, p.trustedDomains) {
			score += trustedDomainBonus
		}
		if matchesDomain(host, socialMediaDomains) {
			score -= socialMediaPenalty
		}
		if matchesDomain(host, factCheckDomains) {
			score += factCheckerBonus
		}

		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		scored[i].DomainScore = score
	}
	return scored
}

// Assess runs the profile's heuristics, delegates judgment to the reasoning
// service, and post-processes the result.
func (p *profile) Assess(ctx context.Context, claim string, evidence []model.EvidenceItem) (model.EvaluatorReport, error) {
	scored := p.scoreEvidence(evidence)

	judgment, err := p.provider.Judge(ctx, llm.JudgeRequest{
		Profile:  p.name,
		Persona:  p.persona,
		Claim:    claim,
		Evidence: scored,
	})
	if err != nil {
		return model.EvaluatorReport{}, fmt.Errorf("evaluator %s: %w", p.name, err)
	}

	report := model.EvaluatorReport{
		EvaluatorName:    p.displayName,
		CredibilityScore: judgment.CredibilityScore,
		Confidence:       judgment.Confidence,
		Verdict:          model.Verdict(judgment.Verdict),
		Summary:          judgment.Summary,
		Reasoning:        judgment.Reasoning,
		KeyFindings:      judgment.KeyFindings,
		Concerns:         judgment.Concerns,
		EvidenceLinks:    evidenceLinks(scored),
	}

	if p.hasSensitiveContent(claim, scored) {
		report.Confidence *= sensitivityConfidenceFactor
		report.Concerns = append(report.Concerns, "claim touches a heightened-scrutiny topic for this profile")
	}

	if hasFactCheckEvidence(scored) {
		p.applyFactCheckAdjustment(&report)
	}

	clampReport(&report)
	return report, nil
}

// hasSensitiveContent reports whether the claim or evidence text triggers
// the profile's heightened-scrutiny keyword families.
func (p *profile) hasSensitiveContent(claim string, evidence []model.EvidenceItem) bool {
	if containsAnyKeyword(claim, p.sensitiveKeywords) {
		return true
	}
	for _, ev := range evidence {
		if containsAnyKeyword(ev.Title+" "+ev.Snippet, p.sensitiveKeywords) {
			return true
		}
	}
	return false
}

// applyFactCheckAdjustment applies the profile-specific boost when
// corroborating fact-check evidence is present.
func (p *profile) applyFactCheckAdjustment(report *model.EvaluatorReport) {
	report.CredibilityScore += p.factCheckScoreBonus
	report.Confidence += p.factCheckConfidenceBonus
	if p.factCheckScoreBonus != 0 || p.factCheckConfidenceBonus != 0 {
		report.KeyFindings = append(report.KeyFindings, "corroborating fact-check coverage present")
	}
}

func clampReport(r *model.EvaluatorReport) {
	if r.CredibilityScore < 0 {
		r.CredibilityScore = 0
	}
	if r.CredibilityScore > 100 {
		r.CredibilityScore = 100
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
}

func evidenceLinks(evidence []model.EvidenceItem) []string {
	links := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		links = append(links, ev.URL)
	}
	return links
}

func hasFactCheckEvidence(evidence []model.EvidenceItem) bool {
	for _, ev := range evidence {
		if matchesDomain(ev.Host(), factCheckDomains) {
			return true
		}
	}
	return false
}

func matchesDomain(host string, domains []string) bool {
	host = strings.ToLower(host)
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
