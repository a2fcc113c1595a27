package audit

import (
	"context"
	"log/slog"
)

// Worker drains the publisher's stream side into a Sink. Sink failures are
// logged and skipped; the store already holds the durable copy.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-w.inbox:
			if err := w.sink.Publish(ctx, e); err != nil {
				if w.logger != nil {
					w.logger.WarnContext(ctx, "audit sink publish failed",
						"kind", e.Kind, "handle", e.Handle, "error", err)
				}
			}
		}
	}
}
