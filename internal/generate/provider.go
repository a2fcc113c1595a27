// Package generate produces companion replies through an ordered chain of
// LLM providers with automatic failover.
package generate

import (
	"context"
	"errors"

	"compass/internal/domain"
)

var (
	// ErrAllProvidersExhausted reports that every configured provider failed
	// or was skipped for one completion.
	ErrAllProvidersExhausted = errors.New("generate: all providers exhausted")
	// ErrRateLimited reports a provider-side 429.
	ErrRateLimited = errors.New("generate: rate limited")
	// ErrNotConfigured reports a provider constructed without credentials.
	ErrNotConfigured = errors.New("generate: provider not configured")
)

// Prompt is one completion request. Turns carry the assembled history with
// the current inbound message as the final user turn.
type Prompt struct {
	System      string
	Turns       []domain.ContextTurn
	MaxTokens   int
	Temperature float64
}

// Completion is one provider's reply.
type Completion struct {
	Text       string
	Provider   string
	Model      string
	TokensUsed int
	// FellBack is set by the chain when a non-primary provider served the
	// request.
	FellBack bool
}

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (*Completion, error)
}
