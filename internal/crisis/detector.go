// Package crisis classifies message text against curated term lists and keeps
// the append-only record of every firing.
package crisis

import (
	"strings"

	"compass/internal/domain"
)

// ResourceMessage is the fixed reply that replaces a generated response when a
// high-severity category fires.
const ResourceMessage = "I'm concerned about what you're sharing. Please know that help is available:\n\n" +
	"Crisis & Suicide Lifeline: 988\n" +
	"Available 24/7 for free, confidential support.\n\n" +
	"You can also text HELLO to 741741 for Crisis Text Line.\n\n" +
	"I'm here to listen and support you, but I'm not a therapist or crisis counselor. " +
	"These trained professionals can provide the immediate help you need."

// Detector is a pure function of its term list: same text and same list
// version always produce the same detections.
type Detector struct {
	terms TermList
}

func NewDetector(terms TermList) *Detector {
	return &Detector{terms: terms}
}

// Version identifies the term list in audit records.
func (d *Detector) Version() string {
	return d.terms.Version
}

// Classify returns every category that fires on the text, with the matched
// terms. Multiple categories may co-fire; an empty slice means no concern.
func (d *Detector) Classify(text string) []domain.Detection {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	var detections []domain.Detection
	for _, ct := range d.terms.Categories {
		var matched []string
		for _, p := range ct.Patterns {
			if m := p.FindString(normalized); m != "" {
				matched = append(matched, m)
			}
		}
		if len(matched) > 0 {
			detections = append(detections, domain.Detection{
				Category:   ct.Category,
				Severity:   ct.Severity,
				Confidence: ct.Confidence,
				Terms:      matched,
			})
		}
	}
	return detections
}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// normalize lower-cases, collapses whitespace, and folds the Unicode
// apostrophes that phone keyboards insert, so "don't" patterns match the
// curly-quote form too.
func normalize(text string) string {
	text = apostrophes.Replace(text)
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
