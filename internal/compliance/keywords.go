package compliance

import (
	"strings"
	"time"

	"compass/internal/domain"
)

// Keyword command sets. Whole-message, case-insensitive matching only:
// "please stop texting me" is conversation, "STOP" is a command.
var (
	stopWords  = map[string]bool{"STOP": true, "UNSUBSCRIBE": true, "CANCEL": true, "END": true, "QUIT": true}
	startWords = map[string]bool{"START": true, "UNSTOP": true}
)

// CannedReply is the fixed confirmation returned for a keyword command.
type CannedReply struct {
	Text string
	Kind domain.ConsentKind
}

// ApplyKeyword matches the message against the command sets and applies the
// opt-in/opt-out transition. Returns nil when the text is not a command.
//
// Once opted out, this is the only pathway back: ambiguous text never clears
// the flag.
func (g *Gate) ApplyKeyword(u *domain.User, text string, now time.Time) *CannedReply {
	normalized := strings.ToUpper(strings.TrimSpace(text))

	switch {
	case stopWords[normalized]:
		u.OptIn = domain.OptedOut
		u.Compliance.Consents = append(u.Compliance.Consents, domain.ConsentRecord{
			Kind:       domain.ConsentOptOut,
			RecordedAt: now,
		})
		return &CannedReply{Text: OptOutConfirmation, Kind: domain.ConsentOptOut}
	case startWords[normalized]:
		u.OptIn = domain.OptInActive
		u.Compliance.Consents = append(u.Compliance.Consents, domain.ConsentRecord{
			Kind:       domain.ConsentOptIn,
			RecordedAt: now,
		})
		return &CannedReply{Text: OptInConfirmation, Kind: domain.ConsentOptIn}
	}
	return nil
}

// IsStartKeyword reports whether the text is an explicit re-opt-in command.
// Used on the opted-out path where every other message is suppressed.
func IsStartKeyword(text string) bool {
	return startWords[strings.ToUpper(strings.TrimSpace(text))]
}

// adultContentTerms backs the minor content filter. Substring matching here is
// intentionally blunt; the block message invites a different topic rather than
// accusing the user.
var adultContentTerms = []string{"sex", "sexual", "nude", "porn", "explicit"}

func containsAdultContent(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range adultContentTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
