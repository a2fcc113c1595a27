package crisis

import (
	"context"
	"sync"

	"compass/internal/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]domain.CrisisEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]domain.CrisisEvent)}
}

func (s *InMemoryStore) Append(_ context.Context, event domain.CrisisEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Handle] = append(s.events[event.Handle], event)
	return nil
}

func (s *InMemoryStore) ListByHandle(_ context.Context, handle string) ([]domain.CrisisEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CrisisEvent{}, s.events[handle]...), nil
}
