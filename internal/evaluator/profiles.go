package evaluator

import "github.com/veritrail/veritrail/internal/llm"

const (
	trustedDomainBonus = 15
	socialMediaPenalty = 20
	factCheckerBonus   = 10

	// sensitivityConfidenceFactor shrinks confidence when a profile's
	// heightened-scrutiny keywords appear in the claim or evidence.
	sensitivityConfidenceFactor = 0.85
)

var socialMediaDomains = []string{
	"twitter.com", "x.com", "facebook.com", "instagram.com", "tiktok.com",
	"reddit.com", "t.me", "youtube.com",
}

var factCheckDomains = []string{
	"snopes.com", "politifact.com", "factcheck.org", "fullfact.org",
	"leadstories.com",
}

// profile implements Evaluator. Profiles differ only in which domains earn a
// trust bonus, which keyword families trigger heightened scrutiny, and the
// adjustment applied when corroborating fact-check evidence is present.
type profile struct {
	name        string
	displayName string
	profileType string
	persona     string

	trustedDomains    []string
	sensitiveKeywords []string

	factCheckScoreBonus      int
	factCheckConfidenceBonus float64

	provider llm.Provider
}

func (p *profile) Name() string        { return p.name }
func (p *profile) DisplayName() string { return p.displayName }
func (p *profile) Type() string        { return p.profileType }

func builtinProfiles() []*profile {
	return []*profile{
		{
			name:        "scientific",
			displayName: "Scientific Evaluator",
			profileType: "builtin",
			persona: "You assess claims from a scientific-method perspective. " +
				"Weigh peer-reviewed journals and institutional research heavily; " +
				"treat anecdotes and press releases as weak evidence.",
			trustedDomains: []string{
				"nature.com", "science.org", "nejm.org", "thelancet.com",
				"arxiv.org", "ncbi.nlm.nih.gov",
			},
			sensitiveKeywords: []string{
				"miracle", "breakthrough", "scientists baffled", "proven",
			},
			factCheckConfidenceBonus: 0.05,
		},
		{
			name:        "political",
			displayName: "Political Evaluator",
			profileType: "builtin",
			persona: "You assess claims about politics and public institutions. " +
				"Prefer wire services and primary documents; discount partisan " +
				"outlets and unsourced attributions.",
			trustedDomains: []string{
				"reuters.com", "apnews.com", "bbc.com", "bbc.co.uk",
			},
			sensitiveKeywords: []string{
				"rigged", "conspiracy", "deep state", "cover-up", "scandal",
			},
			factCheckScoreBonus: 5,
		},
		{
			name:        "financial",
			displayName: "Financial Evaluator",
			profileType: "builtin",
			persona: "You assess claims about markets, companies and money. " +
				"Prefer filings, earnings data and established financial press; " +
				"treat promotional or anonymous sources as weak evidence.",
			trustedDomains: []string{
				"bloomberg.com", "ft.com", "wsj.com", "reuters.com", "sec.gov",
			},
			sensitiveKeywords: []string{
				"guaranteed returns", "to the moon", "insider", "get rich",
			},
			factCheckConfidenceBonus: 0.05,
		},
		{
			name:        "health",
			displayName: "Health Evaluator",
			profileType: "builtin",
			persona: "You assess medical and public-health claims. Weigh health " +
				"agencies and clinical literature heavily; flag supplement " +
				"marketing and single-study extrapolations.",
			trustedDomains: []string{
				"who.int", "cdc.gov", "nih.gov", "nejm.org", "cochrane.org",
			},
			sensitiveKeywords: []string{
				"miracle cure", "detox", "toxins", "big pharma", "natural remedy",
			},
			factCheckScoreBonus: 5,
		},
		{
			name:        GenericName,
			displayName: "Generic Evaluator",
			profileType: "baseline",
			persona: "You assess claims neutrally with no topical bias, " +
				"weighing all supplied sources purely by their quality scores.",
		},
	}
}
