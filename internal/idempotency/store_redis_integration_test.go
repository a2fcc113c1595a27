//go:build integration

package idempotency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/domain"
	"compass/internal/idempotency"
	"compass/pkg/testutil/containers"
)

func TestRedisRecorderClaimRecordReplay(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	rec := idempotency.NewRedisRecorder(rc.Client, time.Hour)

	prior, claimed, err := rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, prior)
	assert.True(t, claimed)

	// Second delivery while in flight: no claim, no prior.
	prior, claimed, err = rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, prior)
	assert.False(t, claimed)

	decision := domain.Send("hello")
	require.NoError(t, rec.Record(ctx, "ev-1", decision))

	prior, claimed, err = rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, prior)
	assert.Equal(t, decision, *prior)
}

func TestRedisRecorderRelease(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	rec := idempotency.NewRedisRecorder(rc.Client, time.Hour)

	_, claimed, err := rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, rec.Release(ctx, "ev-1"))

	_, claimed, err = rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, claimed, "released claim must be claimable again")
}

func TestRedisRecorderConcurrentClaimSingleWinner(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	rec := idempotency.NewRedisRecorder(rc.Client, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := rec.Claim(ctx, "ev-race")
			require.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRedisRecorderTTLExpiry(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	rec := idempotency.NewRedisRecorder(rc.Client, time.Second)

	_, claimed, err := rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, rec.Record(ctx, "ev-1", domain.Send("hi")))

	time.Sleep(1500 * time.Millisecond)

	_, claimed, err = rec.Claim(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, claimed, "expired record must be claimable again")
}
