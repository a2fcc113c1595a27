package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/domain"
)

func TestClaimThenRecordThenReplay(t *testing.T) {
	rec := NewInMemoryRecorder(time.Hour)
	ctx := context.Background()

	prior, claimed, err := rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, prior)

	require.NoError(t, rec.Record(ctx, "evt-1", domain.Send("hello")))

	prior, claimed, err = rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, prior)
	assert.Equal(t, domain.DecisionSend, prior.Kind)
	assert.Equal(t, "hello", prior.Text)
}

func TestDuplicateInFlight(t *testing.T) {
	rec := NewInMemoryRecorder(time.Hour)
	ctx := context.Background()

	_, claimed, err := rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, claimed)

	prior, claimed, err := rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Nil(t, prior)
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	rec := NewInMemoryRecorder(time.Hour)
	ctx := context.Background()

	_, claimed, err := rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, rec.Release(ctx, "evt-1"))

	_, claimed, err = rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestExpiredEntryCanBeReclaimed(t *testing.T) {
	rec := NewInMemoryRecorder(time.Minute)
	base := time.Now()
	rec.now = func() time.Time { return base }
	ctx := context.Background()

	_, claimed, err := rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, claimed)

	rec.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, claimed, err = rec.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestConcurrentClaimsExactlyOneWinner(t *testing.T) {
	rec := NewInMemoryRecorder(time.Hour)
	ctx := context.Background()

	var winners atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := rec.Claim(ctx, "evt-race")
			require.NoError(t, err)
			if claimed {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), winners.Load())
}
