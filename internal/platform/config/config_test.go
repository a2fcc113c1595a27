package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 3*time.Hour, cfg.DisclosureInterval)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleWindow)
	assert.Equal(t, 10, cfg.ContextTurnLimit)
	assert.Equal(t, 2000, cfg.ContextTokenBudget)
	assert.Equal(t, []string{"anthropic", "openai", "gemini"}, cfg.ProviderOrder)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COMPASS_DISCLOSURE_INTERVAL", "90m")
	t.Setenv("COMPASS_PROVIDER_ORDER", "openai, anthropic")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("COMPASS_CONTEXT_TOKEN_BUDGET", "512")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.DisclosureInterval)
	assert.Equal(t, []string{"openai", "anthropic"}, cfg.ProviderOrder)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 512, cfg.ContextTokenBudget)
}

func TestFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("COMPASS_PROVIDER_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPASS_PROVIDER_TIMEOUT")
}
