package contextcache

import (
	"context"
	"sync"
	"time"

	"compass/pkg/sentinel"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryCache backs tests and cache-less deployments.
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[key]
	if !ok || !item.expiresAt.After(c.now()) {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), item.value...), nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}
