package crisis

import (
	"regexp"

	"compass/internal/domain"
)

// TermList is the versioned, data-driven matching input for the detector.
// Matching is deliberately permissive: spurious triggers are acceptable,
// missed ones are not. The orchestrator decides consequence.
type TermList struct {
	Version    string
	Categories []CategoryTerms
}

// CategoryTerms binds one category to its patterns and fixed severity tier.
type CategoryTerms struct {
	Category   domain.CrisisCategory
	Severity   domain.Severity
	Confidence float64
	Patterns   []*regexp.Regexp
}

func mustPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// DefaultTerms is the curated list shipped with the service. Changing any
// pattern requires bumping the version so audit records stay attributable.
func DefaultTerms() TermList {
	return TermList{
		Version: "2025-08-1",
		Categories: []CategoryTerms{
			{
				Category:   domain.CrisisSuicide,
				Severity:   domain.SeverityHigh,
				Confidence: 0.9,
				Patterns: mustPatterns(
					`\bsuicide\b`,
					`\bsuicidal\b`,
					`\bkill myself\b`,
					`\bend (my|it all)\b`,
					`\bending (it|my life)\b`,
					`\bwant to die\b`,
					`\bdon'?t want to live\b`,
					`\bnot worth living\b`,
					`\bbetter off dead\b`,
				),
			},
			{
				Category:   domain.CrisisSelfHarm,
				Severity:   domain.SeverityHigh,
				Confidence: 0.8,
				Patterns: mustPatterns(
					`\bcut(ting)? myself\b`,
					`\bhurt(ing)? myself\b`,
					`\bself[- ]harm\b`,
					`\bburn(ing)? myself\b`,
					`\bpunish myself\b`,
				),
			},
			{
				Category:   domain.CrisisViolence,
				Severity:   domain.SeverityElevated,
				Confidence: 0.85,
				Patterns: mustPatterns(
					`\bhurt (someone|others|people)\b`,
					`\bkill (someone|others|people|them)\b`,
					`\bshoot (someone|others|people|them|up)\b`,
					`\battack (someone|others|people)\b`,
					`\bviolent thoughts\b`,
				),
			},
			{
				Category:   domain.CrisisAbuse,
				Severity:   domain.SeverityElevated,
				Confidence: 0.75,
				Patterns: mustPatterns(
					`\babusing me\b`,
					`\bhitting me\b`,
					`\bhurting me\b`,
					`\bafraid of\b`,
					`\bdom(estic)? violence\b`,
				),
			},
		},
	}
}
