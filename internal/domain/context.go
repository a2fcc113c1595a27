package domain

import "time"

// ContextTurn is the cache-resident projection of a Turn used for prompting.
type ContextTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ConversationContext is the derived short-term memory for one user: the most
// recent turns bounded by count and by an estimated token budget, plus durable
// preferences.
type ConversationContext struct {
	Handle          string            `json:"handle"`
	Turns           []ContextTurn     `json:"turns"`
	Preferences     map[string]string `json:"preferences,omitempty"`
	EstimatedTokens int               `json:"estimated_tokens"`
	BuiltAt         time.Time         `json:"built_at"`
}

// EstimateTokens is the stable conservative bound used for budgeting: text
// length over an average characters-per-token constant. Tokenizer fidelity is
// not required, only stability.
func EstimateTokens(text string) int {
	const avgCharsPerToken = 4
	if text == "" {
		return 0
	}
	return len(text)/avgCharsPerToken + 1
}
