package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compass/internal/audit"
	"compass/internal/domain"
	"compass/internal/user"
	"compass/pkg/sentinel"
)

func newTestService(t *testing.T) (*Service, *TokenService, user.Store) {
	t.Helper()
	tokens := NewTokenService("test-signing-key", "age-provider")
	users := user.NewInMemoryStore()
	return NewService(tokens, users, audit.NewPublisher(audit.NewInMemoryStore()), nil), tokens, users
}

func TestHandleCallbackUpdatesStatus(t *testing.T) {
	svc, tokens, users := newTestService(t)
	ctx := context.Background()

	u := domain.NewUser("+15550001111", time.Now())
	require.NoError(t, users.Create(ctx, u))

	token, err := tokens.Generate(u.Handle, "verified_adult", time.Minute)
	require.NoError(t, err)

	require.NoError(t, svc.HandleCallback(ctx, token))

	got, err := users.Load(ctx, u.Handle)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationAdult, got.Verification)
	assert.True(t, got.Verification.Verified())
}

func TestHandleCallbackMinorVerdict(t *testing.T) {
	svc, tokens, users := newTestService(t)
	ctx := context.Background()

	u := domain.NewUser("+15550001111", time.Now())
	require.NoError(t, users.Create(ctx, u))

	token, err := tokens.Generate(u.Handle, "verified_minor", time.Minute)
	require.NoError(t, err)
	require.NoError(t, svc.HandleCallback(ctx, token))

	got, err := users.Load(ctx, u.Handle)
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationMinor, got.Verification)
}

func TestHandleCallbackRejectsBadSignature(t *testing.T) {
	svc, _, users := newTestService(t)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, domain.NewUser("+15550001111", time.Now())))

	forged := NewTokenService("wrong-key", "age-provider")
	token, err := forged.Generate("+15550001111", "verified_adult", time.Minute)
	require.NoError(t, err)

	assert.Error(t, svc.HandleCallback(ctx, token))

	got, err := users.Load(ctx, "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationUnverified, got.Verification)
}

func TestHandleCallbackRejectsExpiredToken(t *testing.T) {
	svc, tokens, users := newTestService(t)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, domain.NewUser("+15550001111", time.Now())))

	token, err := tokens.Generate("+15550001111", "verified_adult", -time.Minute)
	require.NoError(t, err)

	err = svc.HandleCallback(ctx, token)
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestHandleCallbackRejectsUnknownStatus(t *testing.T) {
	svc, tokens, users := newTestService(t)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, domain.NewUser("+15550001111", time.Now())))

	token, err := tokens.Generate("+15550001111", "definitely_a_grownup", time.Minute)
	require.NoError(t, err)

	assert.Error(t, svc.HandleCallback(ctx, token))
}

func TestHandleCallbackUnknownUser(t *testing.T) {
	svc, tokens, _ := newTestService(t)

	token, err := tokens.Generate("+15559999999", "verified_adult", time.Minute)
	require.NoError(t, err)

	err = svc.HandleCallback(context.Background(), token)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	tokens := NewTokenService("key", "age-provider")
	other := NewTokenService("key", "someone-else")

	token, err := other.Generate("+15550001111", "verified_adult", time.Minute)
	require.NoError(t, err)

	_, err = tokens.Validate(token)
	assert.Error(t, err)
}
