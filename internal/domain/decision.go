package domain

import "time"

// InboundEvent is the normalized inbound boundary the core consumes.
// Translation from any wire format happens upstream.
type InboundEvent struct {
	EventID    string    `json:"event_id"`
	Handle     string    `json:"handle"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// DecisionKind distinguishes a sent reply from an explicit no-op.
type DecisionKind string

const (
	DecisionSend     DecisionKind = "send"
	DecisionSuppress DecisionKind = "suppress"
)

// SuppressReason explains why no outbound was produced.
type SuppressReason string

const (
	SuppressOptedOut    SuppressReason = "opted_out"
	SuppressPersistence SuppressReason = "persistence_failure"
	SuppressStateChange SuppressReason = "state_changed_mid_flight"
	SuppressDuplicate   SuppressReason = "duplicate_in_flight"
)

// OutboundDecision is the single result of one inbound event: exactly one
// Send or one Suppress.
type OutboundDecision struct {
	Kind   DecisionKind   `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Reason SuppressReason `json:"reason,omitempty"`
}

// Send builds a send decision.
func Send(text string) OutboundDecision {
	return OutboundDecision{Kind: DecisionSend, Text: text}
}

// Suppress builds an explicit no-op decision.
func Suppress(reason SuppressReason) OutboundDecision {
	return OutboundDecision{Kind: DecisionSuppress, Reason: reason}
}
