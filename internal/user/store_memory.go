package user

import (
	"context"
	"encoding/json"
	"sync"

	"compass/internal/domain"
	"compass/pkg/sentinel"
)

// InMemoryStore keeps users in a map. Used in tests and when no database is
// configured.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, handle string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.users[handle]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *InMemoryStore) Create(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Handle]; ok {
		return sentinel.ErrConflict
	}
	return s.put(u)
}

func (s *InMemoryStore) Save(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Handle]; !ok {
		return sentinel.ErrNotFound
	}
	return s.put(u)
}

// put serializes so callers cannot alias the stored value.
func (s *InMemoryStore) put(u *domain.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.users[u.Handle] = raw
	return nil
}
