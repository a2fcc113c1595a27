package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime settings for the conversation engine.
type Config struct {
	Addr             string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DatabaseURL string
	RedisURL    string

	// Kafka audit publishing; empty brokers means the in-process worker drains
	// audit events straight to the durable store.
	KafkaBrokers []string
	AuditTopic   string

	EncryptionKey   string
	VerificationKey string
	VerificationURL string
	OutboundURL     string

	// Compliance cadence.
	DisclosureInterval time.Duration
	SessionIdleWindow  time.Duration
	IdempotencyTTL     time.Duration

	// Context assembly bounds.
	ContextTurnLimit   int
	ContextTokenBudget int
	ContextTTL         time.Duration

	// Provider chain.
	ProviderOrder    []string
	ProviderTimeout  time.Duration
	ProviderRPS      float64
	AnthropicAPIKey  string
	AnthropicModel   string
	OpenAIAPIKey     string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
	MaxReplyTokens   int
	ReplyTemperature float64
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:               envOrDefault("COMPASS_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("COMPASS_METRICS_NAMESPACE", "compass"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		AuditTopic:         envOrDefault("COMPASS_AUDIT_TOPIC", "compass.audit.v1"),
		EncryptionKey:      strings.TrimSpace(os.Getenv("COMPASS_ENCRYPTION_KEY")),
		VerificationKey:    strings.TrimSpace(os.Getenv("COMPASS_VERIFICATION_JWT_KEY")),
		VerificationURL:    strings.TrimSpace(os.Getenv("COMPASS_VERIFICATION_URL")),
		OutboundURL:        strings.TrimSpace(os.Getenv("COMPASS_OUTBOUND_URL")),
		AnthropicAPIKey:    strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		AnthropicModel:     envOrDefault("COMPASS_ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        envOrDefault("COMPASS_OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        envOrDefault("COMPASS_GEMINI_MODEL", "gemini-2.0-flash"),
		ShutdownTimeout:    15 * time.Second,
		DisclosureInterval: 3 * time.Hour,
		SessionIdleWindow:  30 * time.Minute,
		IdempotencyTTL:     24 * time.Hour,
		ContextTurnLimit:   10,
		ContextTokenBudget: 2000,
		ContextTTL:         time.Hour,
		ProviderTimeout:    10 * time.Second,
		ProviderRPS:        5,
		MaxReplyTokens:     1000,
		ReplyTemperature:   0.7,
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	order := envOrDefault("COMPASS_PROVIDER_ORDER", "anthropic,openai,gemini")
	for _, p := range strings.Split(order, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			cfg.ProviderOrder = append(cfg.ProviderOrder, p)
		}
	}

	var err error
	if cfg.ShutdownTimeout, err = durationFromEnv("COMPASS_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.DisclosureInterval, err = durationFromEnv("COMPASS_DISCLOSURE_INTERVAL", cfg.DisclosureInterval); err != nil {
		return Config{}, err
	}
	// The idle window both expires cached context and starts a new disclosure
	// session; the disclosure clock resets across fragmented sessions.
	if cfg.SessionIdleWindow, err = durationFromEnv("COMPASS_SESSION_IDLE_WINDOW", cfg.SessionIdleWindow); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv("COMPASS_IDEMPOTENCY_TTL", cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ContextTTL, err = durationFromEnv("COMPASS_CONTEXT_TTL", cfg.ContextTTL); err != nil {
		return Config{}, err
	}
	if cfg.ProviderTimeout, err = durationFromEnv("COMPASS_PROVIDER_TIMEOUT", cfg.ProviderTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ContextTurnLimit, err = intFromEnv("COMPASS_CONTEXT_TURN_LIMIT", cfg.ContextTurnLimit); err != nil {
		return Config{}, err
	}
	if cfg.ContextTokenBudget, err = intFromEnv("COMPASS_CONTEXT_TOKEN_BUDGET", cfg.ContextTokenBudget); err != nil {
		return Config{}, err
	}
	if cfg.MaxReplyTokens, err = intFromEnv("COMPASS_MAX_REPLY_TOKENS", cfg.MaxReplyTokens); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
