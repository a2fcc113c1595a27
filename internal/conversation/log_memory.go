package conversation

import (
	"context"
	"sync"

	"compass/internal/domain"
)

// InMemoryLog keeps turns per handle, oldest first.
type InMemoryLog struct {
	mu    sync.RWMutex
	turns map[string][]domain.Turn
}

func NewInMemoryLog() *InMemoryLog {
	return &InMemoryLog{turns: make(map[string][]domain.Turn)}
}

func (l *InMemoryLog) Append(_ context.Context, t *domain.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t.EventID != "" {
		for _, existing := range l.turns[t.Handle] {
			if existing.EventID == t.EventID {
				// Redelivery after a partial failure; the first append won.
				*t = existing
				return nil
			}
		}
	}
	t.Seq = int64(len(l.turns[t.Handle]) + 1)
	l.turns[t.Handle] = append(l.turns[t.Handle], *t)
	return nil
}

func (l *InMemoryLog) Recent(_ context.Context, handle string, limit int) ([]domain.Turn, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.turns[handle]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]domain.Turn, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}
