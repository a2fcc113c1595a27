package domain

import "time"

// VerificationStatus tracks where a user is in age verification.
// Invariant: the value must be one of the supported statuses; construct via
// ParseVerificationStatus at trust boundaries.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationAdult      VerificationStatus = "verified_adult"
	VerificationMinor      VerificationStatus = "verified_minor"
)

var validVerificationStatuses = map[VerificationStatus]bool{
	VerificationUnverified: true,
	VerificationPending:    true,
	VerificationAdult:      true,
	VerificationMinor:      true,
}

// IsValid checks the status against the supported enum values.
func (s VerificationStatus) IsValid() bool {
	return validVerificationStatuses[s]
}

// Verified reports whether verification has resolved to an outcome.
func (s VerificationStatus) Verified() bool {
	return s == VerificationAdult || s == VerificationMinor
}

func (s VerificationStatus) String() string { return string(s) }

// ParseVerificationStatus constructs a VerificationStatus from external input.
func ParseVerificationStatus(raw string) (VerificationStatus, bool) {
	s := VerificationStatus(raw)
	return s, s.IsValid()
}

// OptInStatus is the messaging consent state machine: active ⇄ opted_out.
// Once opted_out, only an explicit start keyword may move it back to active.
type OptInStatus string

const (
	OptInActive   OptInStatus = "active"
	OptedOut      OptInStatus = "opted_out"
)

func (s OptInStatus) IsValid() bool {
	return s == OptInActive || s == OptedOut
}

func (s OptInStatus) String() string { return string(s) }

// ConsentKind records what a consent entry attests to.
type ConsentKind string

const (
	ConsentOptIn      ConsentKind = "opt_in"
	ConsentOptOut     ConsentKind = "opt_out"
	ConsentDisclosure ConsentKind = "disclosure_shown"
)

// ConsentRecord is an append-only attestation of a compliance transition.
type ConsentRecord struct {
	Kind       ConsentKind `json:"kind"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// ComplianceState is the per-user compliance bookkeeping embedded in User.
type ComplianceState struct {
	LastDisclosureAt *time.Time      `json:"last_disclosure_at,omitempty"`
	SessionStartedAt *time.Time      `json:"session_started_at,omitempty"`
	Consents         []ConsentRecord `json:"consents,omitempty"`
}

// User is the durable identity and consent record for one handle.
// The core never deletes users; retention is an external concern.
type User struct {
	Handle       string             `json:"handle"`
	Verification VerificationStatus `json:"verification"`
	OptIn        OptInStatus        `json:"opt_in"`
	Compliance   ComplianceState    `json:"compliance"`
	Preferences  map[string]string  `json:"preferences,omitempty"`
	LastSeenAt   *time.Time         `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewUser returns a first-contact user in its initial state.
func NewUser(handle string, now time.Time) *User {
	return &User{
		Handle:       handle,
		Verification: VerificationUnverified,
		OptIn:        OptInActive,
		CreatedAt:    now,
	}
}
