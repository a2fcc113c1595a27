//go:build integration

package conversation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/conversation"
	"compass/internal/domain"
	"compass/internal/platform/crypto"
	"compass/pkg/testutil/containers"
)

func newPostgresLog(t *testing.T) *conversation.PostgresLog {
	t.Helper()
	pc := containers.NewPostgresContainer(t)
	cipher, err := crypto.New("integration-test-secret")
	require.NoError(t, err)
	log, err := conversation.NewPostgresLog(context.Background(), pc.Pool, cipher)
	require.NoError(t, err)
	return log
}

func TestPostgresLogAppendAssignsSeq(t *testing.T) {
	log := newPostgresLog(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		turn := &domain.Turn{
			ID:           domain.NewID(),
			Handle:       "+15550001111",
			EventID:      fmt.Sprintf("ev-%d", i),
			InboundText:  fmt.Sprintf("inbound %d", i),
			OutboundText: fmt.Sprintf("outbound %d", i),
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, log.Append(ctx, turn))
		assert.Equal(t, int64(i), turn.Seq)
	}
}

func TestPostgresLogTextEncryptedAtRest(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()
	cipher, err := crypto.New("integration-test-secret")
	require.NoError(t, err)
	log, err := conversation.NewPostgresLog(ctx, pc.Pool, cipher)
	require.NoError(t, err)

	require.NoError(t, log.Append(ctx, &domain.Turn{
		ID:           domain.NewID(),
		Handle:       "+15550001111",
		EventID:      "ev-1",
		InboundText:  "a very private message",
		OutboundText: "a private reply",
		CreatedAt:    time.Now().UTC(),
	}))

	var inbound, outbound string
	row := pc.Pool.QueryRow(ctx, `SELECT inbound_encrypted, outbound_encrypted FROM turns WHERE event_id = 'ev-1'`)
	require.NoError(t, row.Scan(&inbound, &outbound))
	assert.NotContains(t, inbound, "private message")
	assert.NotContains(t, outbound, "private reply")

	turns, err := log.Recent(ctx, "+15550001111", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "a very private message", turns[0].InboundText)
	assert.Equal(t, "a private reply", turns[0].OutboundText)
}

func TestPostgresLogAppendIdempotentOnEventID(t *testing.T) {
	log := newPostgresLog(t)
	ctx := context.Background()

	first := &domain.Turn{
		ID:          domain.NewID(),
		Handle:      "+15550001111",
		EventID:     "ev-1",
		InboundText: "hello",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, log.Append(ctx, first))

	retry := &domain.Turn{
		ID:          domain.NewID(),
		Handle:      "+15550001111",
		EventID:     "ev-1",
		InboundText: "hello",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, log.Append(ctx, retry))
	assert.Equal(t, first.ID, retry.ID)
	assert.Equal(t, first.Seq, retry.Seq)

	turns, err := log.Recent(ctx, "+15550001111", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
}

func TestPostgresLogRecentChronologicalWindow(t *testing.T) {
	log := newPostgresLog(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, log.Append(ctx, &domain.Turn{
			ID:          domain.NewID(),
			Handle:      "+15550001111",
			EventID:     fmt.Sprintf("ev-%d", i),
			InboundText: fmt.Sprintf("inbound %d", i),
			CreatedAt:   time.Now().UTC(),
		}))
	}

	turns, err := log.Recent(ctx, "+15550001111", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "inbound 3", turns[0].InboundText)
	assert.Equal(t, "inbound 5", turns[2].InboundText)
}

func TestPostgresLogSuppressedTurnFields(t *testing.T) {
	log := newPostgresLog(t)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, &domain.Turn{
		ID:               domain.NewID(),
		Handle:           "+15550001111",
		EventID:          "ev-1",
		InboundText:      "hello",
		Suppressed:       true,
		SuppressReason:   domain.SuppressStateChange,
		CrisisCategories: []domain.CrisisCategory{domain.CrisisSelfHarm},
		GenerationFailed: true,
		CreatedAt:        time.Now().UTC(),
	}))

	turns, err := log.Recent(ctx, "+15550001111", 1)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	got := turns[0]
	assert.True(t, got.Suppressed)
	assert.Equal(t, domain.SuppressStateChange, got.SuppressReason)
	assert.Equal(t, []domain.CrisisCategory{domain.CrisisSelfHarm}, got.CrisisCategories)
	assert.True(t, got.GenerationFailed)
	assert.Empty(t, got.OutboundText)
}
