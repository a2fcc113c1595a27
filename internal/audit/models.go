// Package audit captures an append-only trail of compliance-relevant actions.
package audit

import "time"

// Kind names what an audit entry attests to.
type Kind string

const (
	KindDecision         Kind = "decision"
	KindOptOut           Kind = "opt_out"
	KindOptIn            Kind = "opt_in"
	KindDisclosureSent   Kind = "disclosure_sent"
	KindCrisisDetected   Kind = "crisis_detected"
	KindGateBlocked      Kind = "gate_blocked"
	KindProviderDegraded Kind = "provider_degraded"
	KindGenerationFailed Kind = "generation_failed"
)

// Severity ranks entries for downstream alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityElevated Severity = "elevated"
	SeverityHigh     Severity = "high"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      Kind              `json:"kind"`
	Severity  Severity          `json:"severity"`
	Handle    string            `json:"handle"`
	EventID   string            `json:"event_id,omitempty"`
	TurnID    string            `json:"turn_id,omitempty"`
	Decision  string            `json:"decision,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}
