package domain

import "time"

// CrisisCategory names a class of concerning content.
type CrisisCategory string

const (
	CrisisSuicide  CrisisCategory = "suicide"
	CrisisSelfHarm CrisisCategory = "self_harm"
	CrisisViolence CrisisCategory = "violence"
	CrisisAbuse    CrisisCategory = "abuse"
)

// Severity is the coarse tier that decides whether a generated reply is
// overridden. It is fixed per category, never computed.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityElevated Severity = "elevated"
)

// Detection is one category firing for one message.
type Detection struct {
	Category   CrisisCategory `json:"category"`
	Severity   Severity       `json:"severity"`
	Confidence float64        `json:"confidence"`
	Terms      []string       `json:"terms"`
}

// HighSeverity reports whether any detection requires the crisis override.
func HighSeverity(detections []Detection) bool {
	for _, d := range detections {
		if d.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// Categories projects detections to their categories for the turn record.
func Categories(detections []Detection) []CrisisCategory {
	if len(detections) == 0 {
		return nil
	}
	out := make([]CrisisCategory, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Category)
	}
	return out
}

// CrisisEvent is a write-once audit record of a detection. It is never fed
// back as a decision input for a different user.
type CrisisEvent struct {
	ID           string         `json:"id"`
	Handle       string         `json:"handle"`
	TurnID       string         `json:"turn_id"`
	Category     CrisisCategory `json:"category"`
	Severity     Severity       `json:"severity"`
	Confidence   float64        `json:"confidence"`
	Terms        []string       `json:"terms"`
	TermsVersion string         `json:"terms_version"`
	CreatedAt    time.Time      `json:"created_at"`
}
