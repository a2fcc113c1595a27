// Package user owns the durable identity and consent records.
package user

import (
	"context"

	"compass/internal/domain"
)

// Store is the narrow interface the orchestrator and compliance gate use.
// Implementations return sentinel.ErrNotFound when the handle is unknown.
type Store interface {
	Load(ctx context.Context, handle string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Save(ctx context.Context, u *domain.User) error
}
