//go:build integration

package crisis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/crisis"
	"compass/internal/domain"
	"compass/pkg/testutil/containers"
)

func TestPostgresStoreAppendAndList(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store, err := crisis.NewPostgresStore(ctx, pc.Pool)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []domain.CrisisEvent{
		{
			ID:           domain.NewID(),
			Handle:       "+15550001111",
			TurnID:       "turn-1",
			Category:     domain.CrisisSuicide,
			Severity:     domain.SeverityHigh,
			Confidence:   0.95,
			Terms:        []string{"kill myself"},
			TermsVersion: "v1",
			CreatedAt:    now,
		},
		{
			ID:           domain.NewID(),
			Handle:       "+15550001111",
			Category:     domain.CrisisViolence,
			Severity:     domain.SeverityElevated,
			Confidence:   0.6,
			Terms:        []string{"hurt someone"},
			TermsVersion: "v1",
			CreatedAt:    now.Add(time.Second),
		},
		{
			ID:           domain.NewID(),
			Handle:       "+15559999999",
			Category:     domain.CrisisAbuse,
			Severity:     domain.SeverityElevated,
			Terms:        []string{"beats me"},
			TermsVersion: "v1",
			CreatedAt:    now,
		},
	}
	for _, e := range events {
		require.NoError(t, store.Append(ctx, e))
	}

	got, err := store.ListByHandle(ctx, "+15550001111")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.CrisisSuicide, got[0].Category)
	assert.Equal(t, domain.SeverityHigh, got[0].Severity)
	assert.Equal(t, "turn-1", got[0].TurnID)
	assert.Equal(t, []string{"kill myself"}, got[0].Terms)
	assert.Equal(t, "v1", got[0].TermsVersion)
	assert.InDelta(t, 0.95, got[0].Confidence, 1e-9)
	assert.WithinDuration(t, now, got[0].CreatedAt, time.Millisecond)

	assert.Equal(t, domain.CrisisViolence, got[1].Category)
	assert.Empty(t, got[1].TurnID, "gate short-circuits record no turn")
}

func TestPostgresStoreListUnknownHandle(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	store, err := crisis.NewPostgresStore(ctx, pc.Pool)
	require.NoError(t, err)

	got, err := store.ListByHandle(ctx, "+15550000000")
	require.NoError(t, err)
	assert.Empty(t, got)
}
