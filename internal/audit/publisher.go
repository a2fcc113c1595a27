package audit

import (
	"context"
	"log/slog"
	"time"

	"compass/internal/domain"
)

// Sink receives a copy of every audit event for streaming consumers.
type Sink interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Publisher captures structured audit events. The store write is
// synchronous so the trail survives a crash; sink delivery is handed to a
// Worker and is best effort. Without WithStream no copies are queued, so a
// deployment with no sink never fills the inbox.
type Publisher struct {
	store     Store
	inbox     chan Event
	streaming bool
	logger    *slog.Logger
}

type PublisherOption func(*Publisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = logger }
}

// WithStream enables the inbox copy of every event. Only set it when a
// Worker is attached to drain Inbox.
func WithStream() PublisherOption {
	return func(p *Publisher) { p.streaming = true }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store: store,
		inbox: make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = domain.NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if err := p.store.Append(ctx, e); err != nil {
		return err
	}
	if !p.streaming {
		return nil
	}
	select {
	case p.inbox <- e:
	default:
		// A stalled sink must not block the request path.
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit sink inbox full, dropping stream copy",
				"kind", e.Kind, "handle", e.Handle)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, handle string, limit int) ([]Event, error) {
	return p.store.ListByHandle(ctx, handle, limit)
}

// Inbox exposes the stream side for a Worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }
