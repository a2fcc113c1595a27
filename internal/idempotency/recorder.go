// Package idempotency deduplicates inbound event deliveries. Webhook senders
// retry, so one event id must produce exactly one computed decision.
package idempotency

import (
	"context"

	"compass/internal/domain"
)

// Recorder is a short-lived seen-set keyed by event id.
//
// Claim atomically marks the event as in flight. It returns:
//   - (nil, true):  first delivery, caller owns processing
//   - (prior, false): duplicate of a completed event, replay prior
//   - (nil, false): duplicate of an event still in flight
//
// Record stores the computed decision for later replays. The claim and the
// insert are a single atomic step in every implementation.
type Recorder interface {
	Claim(ctx context.Context, eventID string) (*domain.OutboundDecision, bool, error)
	Record(ctx context.Context, eventID string, decision domain.OutboundDecision) error
	Release(ctx context.Context, eventID string) error
}
