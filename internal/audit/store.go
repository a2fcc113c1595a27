package audit

import "context"

// Store persists audit events. Append-only; there is no update or delete.
type Store interface {
	Append(ctx context.Context, e Event) error
	ListByHandle(ctx context.Context, handle string, limit int) ([]Event, error)
}
