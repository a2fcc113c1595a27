package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"compass/internal/domain"
)

const (
	seenKeyPrefix = "idem:event:"
	pendingMarker = "pending"
)

// RedisRecorder is the production recorder: SET NX closes the race between two
// concurrent deliveries of the same event id across instances.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRecorder(client *redis.Client, ttl time.Duration) *RedisRecorder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisRecorder{client: client, ttl: ttl}
}

func (r *RedisRecorder) Claim(ctx context.Context, eventID string) (*domain.OutboundDecision, bool, error) {
	key := seenKeyPrefix + eventID
	ok, err := r.client.SetNX(ctx, key, pendingMarker, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim event: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	raw, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Entry expired between SETNX and GET; retry the claim once.
		ok, err := r.client.SetNX(ctx, key, pendingMarker, r.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("reclaim event: %w", err)
		}
		return nil, ok, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read prior decision: %w", err)
	}
	if raw == pendingMarker {
		return nil, false, nil
	}

	var decision domain.OutboundDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, false, fmt.Errorf("decode prior decision: %w", err)
	}
	return &decision, false, nil
}

func (r *RedisRecorder) Record(ctx context.Context, eventID string, decision domain.OutboundDecision) error {
	raw, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	if err := r.client.Set(ctx, seenKeyPrefix+eventID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Release drops an in-flight claim after a fatal failure so a later retry of
// the delivery can reprocess the event.
func (r *RedisRecorder) Release(ctx context.Context, eventID string) error {
	return r.client.Del(ctx, seenKeyPrefix+eventID).Err()
}
