// Package conversation owns the append-only durable turn log.
package conversation

import (
	"context"

	"compass/internal/domain"
)

// Log persists turns and serves recent history for context rebuilds.
// Append assigns the per-handle sequence number and sets it on the turn;
// it is idempotent on EventID, so a redelivered event cannot land twice
// even when a later persistence step failed the first time through.
// Recent returns at most limit turns in chronological order.
type Log interface {
	Append(ctx context.Context, t *domain.Turn) error
	Recent(ctx context.Context, handle string, limit int) ([]domain.Turn, error)
}
