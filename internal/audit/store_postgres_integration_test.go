//go:build integration

package audit_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/audit"
	"compass/internal/domain"
	"compass/pkg/testutil/containers"
)

func TestPostgresStoreAppendAndListByHandle(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store, err := audit.NewPostgresStore(ctx, pc.Pool)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Append(ctx, audit.Event{
			ID:        domain.NewID(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Kind:      audit.KindDecision,
			Severity:  audit.SeverityInfo,
			Handle:    "+15550001111",
			EventID:   fmt.Sprintf("ev-%d", i),
			Decision:  "send",
			Detail:    map[string]string{"step": fmt.Sprintf("%d", i)},
		}))
	}
	require.NoError(t, store.Append(ctx, audit.Event{
		ID:        domain.NewID(),
		Timestamp: base,
		Kind:      audit.KindOptOut,
		Severity:  audit.SeverityInfo,
		Handle:    "+15559999999",
	}))

	got, err := store.ListByHandle(ctx, "+15550001111", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "ev-2", got[0].EventID)
	assert.Equal(t, "ev-0", got[2].EventID)
	assert.Equal(t, audit.KindDecision, got[0].Kind)
	assert.Equal(t, "send", got[0].Decision)
	assert.Equal(t, map[string]string{"step": "2"}, got[0].Detail)
	assert.WithinDuration(t, base.Add(2*time.Second), got[0].Timestamp, time.Millisecond)
}

func TestPostgresStoreListLimit(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store, err := audit.NewPostgresStore(ctx, pc.Pool)
	require.NoError(t, err)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, audit.Event{
			ID:        domain.NewID(),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Kind:      audit.KindCrisisDetected,
			Severity:  audit.SeverityHigh,
			Handle:    "+15550001111",
		}))
	}

	got, err := store.ListByHandle(ctx, "+15550001111", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
