// Package compliance evaluates the stateful messaging policies: opt-out
// enforcement, keyword commands, disclosure cadence, and the age gate.
package compliance

import (
	"time"

	"compass/internal/domain"
)

// Fixed user-facing texts. These are policy, not copywriting: regulators read
// them, so they change only with review.
const (
	InitialDisclosure = "Hi! I'm an AI companion - not a human, therapist, or medical professional. " +
		"Our conversations are for informational and practical support only.\n\n" +
		"Reply STOP anytime to unsubscribe."

	PeriodicDisclosure = "Reminder: I'm an AI assistant, not a human, therapist, " +
		"or medical professional. Our conversations are for informational purposes only."

	OptOutConfirmation = "You've been unsubscribed. Reply START to resubscribe anytime."

	OptInConfirmation = "You're resubscribed. Reply STOP anytime to unsubscribe."

	VerificationPrompt = "Before we can chat, we need to confirm your age. " +
		"Follow the verification link sent to this number to continue."

	MinorContentBlock = "I can't respond to that type of message. " +
		"Let's talk about something else I can help you with!"
)

// GateResult is the outcome of the pre-generation policy check.
type GateResult string

const (
	GatePass                GateResult = "pass"
	GateRequireVerification GateResult = "require_verification"
	GateMinorContentBlock   GateResult = "minor_content_block"
)

// DisclosureKind distinguishes the first-contact disclosure from the periodic
// reminder.
type DisclosureKind string

const (
	DisclosureInitial  DisclosureKind = "initial"
	DisclosurePeriodic DisclosureKind = "periodic"
)

// Gate holds the cadence configuration. All methods mutate the passed user in
// memory only; the caller persists under its per-user lock.
type Gate struct {
	disclosureInterval time.Duration
	idleWindow         time.Duration
}

func NewGate(disclosureInterval, idleWindow time.Duration) *Gate {
	if disclosureInterval <= 0 {
		disclosureInterval = 3 * time.Hour
	}
	if idleWindow <= 0 {
		idleWindow = 30 * time.Minute
	}
	return &Gate{disclosureInterval: disclosureInterval, idleWindow: idleWindow}
}

// TouchSession marks activity and starts a new continuous-activity window when
// the idle gap has elapsed. Returns true when a new session began.
//
// The disclosure clock deliberately resets with the session: a fragmented
// string of short sessions must each re-disclose rather than ride one old
// timestamp indefinitely.
func (g *Gate) TouchSession(u *domain.User, now time.Time) bool {
	newSession := u.LastSeenAt == nil || now.Sub(*u.LastSeenAt) > g.idleWindow
	if newSession {
		started := now
		u.Compliance.SessionStartedAt = &started
	}
	seen := now
	u.LastSeenAt = &seen
	return newSession
}

// ShouldDisclose reports whether the outbound needs the disclosure notice and
// which text to use. True at session start and once per interval of continuous
// activity.
func (g *Gate) ShouldDisclose(u *domain.User, now time.Time) (bool, DisclosureKind) {
	last := u.Compliance.LastDisclosureAt
	if last == nil {
		return true, DisclosureInitial
	}
	if start := u.Compliance.SessionStartedAt; start != nil && last.Before(*start) {
		return true, DisclosurePeriodic
	}
	if now.Sub(*last) >= g.disclosureInterval {
		return true, DisclosurePeriodic
	}
	return false, ""
}

// RecordDisclosure stamps the disclosure time and appends the consent record.
func (g *Gate) RecordDisclosure(u *domain.User, now time.Time) {
	t := now
	u.Compliance.LastDisclosureAt = &t
	u.Compliance.Consents = append(u.Compliance.Consents, domain.ConsentRecord{
		Kind:       domain.ConsentDisclosure,
		RecordedAt: now,
	})
}

// CheckGate runs the pre-generation policy checks: unresolved verification
// short-circuits, verified minors additionally get adult-content filtering.
// A high-severity crisis firing passes unconditionally so the resource
// message is never withheld behind the age gate.
func (g *Gate) CheckGate(u *domain.User, text string, detections []domain.Detection) GateResult {
	if domain.HighSeverity(detections) {
		return GatePass
	}
	if !u.Verification.Verified() {
		return GateRequireVerification
	}
	if u.Verification == domain.VerificationMinor && containsAdultContent(text) {
		return GateMinorContentBlock
	}
	return GatePass
}
