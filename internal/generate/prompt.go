package generate

import (
	"fmt"
	"strings"

	"compass/internal/domain"
)

const basePersona = `You are Jules, a helpful AI life companion. You communicate over SMS, so keep responses concise and friendly.

Your role:
- Help with grocery planning, meal decisions, scheduling, and daily tasks
- Provide practical advice and support
- Be warm, conversational, and helpful

Important guidelines:
- Keep responses under 160 characters when possible
- Be conversational and natural
- You are NOT a therapist, doctor, or crisis counselor
- For emergencies, direct users to appropriate services (988 for crisis, 911 for emergencies)
- Respect user privacy and be trustworthy`

// SystemPrompt renders the persona instructions for one user, folding in any
// stored preferences.
func SystemPrompt(u *domain.User) string {
	var b strings.Builder
	b.WriteString(basePersona)
	if name := u.Preferences["name"]; name != "" {
		fmt.Fprintf(&b, "\n\nYou can call the user %s.", name)
	}
	if tone := u.Preferences["tone"]; tone != "" {
		fmt.Fprintf(&b, "\nPreferred tone: %s.", tone)
	}
	if u.Verification == domain.VerificationMinor {
		b.WriteString("\nThe user is a minor. Keep all content strictly age-appropriate and decline romantic or adult topics.")
	}
	return b.String()
}
