package idempotency

import (
	"context"
	"sync"
	"time"

	"compass/internal/domain"
)

type memoryEntry struct {
	decision  *domain.OutboundDecision
	expiresAt time.Time
}

// InMemoryRecorder backs tests and single-instance deployments without Redis.
type InMemoryRecorder struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemoryRecorder(ttl time.Duration) *InMemoryRecorder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &InMemoryRecorder{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *InMemoryRecorder) Claim(_ context.Context, eventID string) (*domain.OutboundDecision, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.entries[eventID]; ok && entry.expiresAt.After(now) {
		return entry.decision, false, nil
	}
	r.entries[eventID] = &memoryEntry{expiresAt: now.Add(r.ttl)}
	return nil, true, nil
}

func (r *InMemoryRecorder) Record(_ context.Context, eventID string, decision domain.OutboundDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[eventID] = &memoryEntry{
		decision:  &decision,
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *InMemoryRecorder) Release(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, eventID)
	return nil
}
