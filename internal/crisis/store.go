package crisis

import (
	"context"

	"compass/internal/domain"
)

// Store persists crisis events. Append-only; events are never mutated and are
// read only for compliance reporting.
type Store interface {
	Append(ctx context.Context, event domain.CrisisEvent) error
	ListByHandle(ctx context.Context, handle string) ([]domain.CrisisEvent, error)
}
