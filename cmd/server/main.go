// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages. Every backing
// store has an in-memory fallback so the binary runs with no external
// dependencies configured.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"compass/internal/audit"
	"compass/internal/compliance"
	"compass/internal/contextcache"
	"compass/internal/conversation"
	"compass/internal/crisis"
	"compass/internal/generate"
	"compass/internal/idempotency"
	"compass/internal/orchestrator"
	"compass/internal/outbound"
	"compass/internal/platform/config"
	"compass/internal/platform/crypto"
	"compass/internal/platform/httpserver"
	"compass/internal/platform/logger"
	redisplatform "compass/internal/platform/redis"
	httptransport "compass/internal/transport/http"
	"compass/internal/user"
	"compass/internal/verification"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	rdb, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	users, turnLog, crisisStore, auditStore, err := buildStores(ctx, cfg, pool, log)
	if err != nil {
		return err
	}

	var recorder idempotency.Recorder
	var cache contextcache.Cache
	if rdb != nil {
		recorder = idempotency.NewRedisRecorder(rdb.Client, cfg.IdempotencyTTL)
		cache = contextcache.NewRedisCache(rdb.Client)
	} else {
		recorder = idempotency.NewInMemoryRecorder(cfg.IdempotencyTTL)
		cache = contextcache.NewInMemoryCache()
		log.Warn("redis not configured, idempotency and context cache are in-memory")
	}

	assembler := contextcache.NewAssembler(cache, turnLog,
		cfg.ContextTurnLimit, cfg.ContextTokenBudget, cfg.ContextTTL,
		contextcache.WithLogger(log),
		contextcache.WithMetrics(contextcache.NewMetrics(cfg.MetricsNamespace)),
	)

	chain, err := buildChain(ctx, cfg, log)
	if err != nil {
		return err
	}

	auditOpts := []audit.PublisherOption{audit.WithPublisherLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		auditOpts = append(auditOpts, audit.WithStream())
	}
	auditPub := audit.NewPublisher(auditStore, auditOpts...)
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer sink.Close()
		go audit.NewWorker(sink, auditPub.Inbox(), log).Run(ctx)
		log.Info("audit events streaming to kafka", "topic", cfg.AuditTopic)
	}

	var verifierClient verification.Client = verification.NoopClient{}
	if cfg.VerificationURL != "" {
		verifierClient = verification.NewHTTPClient(cfg.VerificationURL, cfg.ProviderTimeout)
	}
	tokens := verification.NewTokenService(cfg.VerificationKey, "compass-verification")
	verifier := verification.NewService(tokens, users, auditPub, log)

	var channel outbound.Channel = outbound.NewLogChannel(log)
	if cfg.OutboundURL != "" {
		channel = outbound.NewHTTPChannel(cfg.OutboundURL, cfg.ProviderTimeout)
	}

	pipeline := orchestrator.NewService(
		users,
		recorder,
		compliance.NewGate(cfg.DisclosureInterval, cfg.SessionIdleWindow),
		crisis.NewDetector(crisis.DefaultTerms()),
		crisisStore,
		assembler,
		chain,
		verifierClient,
		channel,
		auditPub,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(orchestrator.NewMetrics(cfg.MetricsNamespace)),
		orchestrator.WithReplyLimits(cfg.MaxReplyTokens, cfg.ReplyTemperature),
	)

	handler := httptransport.NewHandler(pipeline, verifier, auditPub, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, log))

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildStores(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *slog.Logger) (user.Store, conversation.Log, crisis.Store, audit.Store, error) {
	if pool == nil {
		log.Warn("database not configured, all state is in-memory")
		return user.NewInMemoryStore(), conversation.NewInMemoryLog(), crisis.NewInMemoryStore(), audit.NewInMemoryStore(), nil
	}

	cipher, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	users, err := user.NewPostgresStore(ctx, pool, cipher)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	turnLog, err := conversation.NewPostgresLog(ctx, pool, cipher)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	crisisStore, err := crisis.NewPostgresStore(ctx, pool)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	auditStore, err := audit.NewPostgresStore(ctx, pool)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return users, turnLog, crisisStore, auditStore, nil
}

func buildChain(ctx context.Context, cfg config.Config, log *slog.Logger) (*generate.Chain, error) {
	var providers []generate.Provider
	for _, name := range cfg.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.AnthropicAPIKey != "" {
				providers = append(providers, generate.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.ProviderTimeout))
			}
		case "openai":
			if cfg.OpenAIAPIKey != "" {
				providers = append(providers, generate.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.ProviderTimeout))
			}
		case "gemini":
			if cfg.GeminiAPIKey != "" {
				p, err := generate.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
				if err != nil {
					return nil, err
				}
				providers = append(providers, p)
			}
		default:
			log.Warn("unknown provider in order, skipping", "provider", name)
		}
	}
	if len(providers) == 0 {
		log.Warn("no providers configured, every generation will degrade")
	}

	opts := []generate.ChainOption{
		generate.WithChainLogger(log),
		generate.WithChainMetrics(generate.NewMetrics(cfg.MetricsNamespace)),
	}
	if cfg.ProviderRPS > 0 {
		for _, p := range providers {
			opts = append(opts, generate.WithProviderRateLimit(p.Name(), cfg.ProviderRPS))
		}
	}
	return generate.NewChain(cfg.ProviderTimeout, providers, opts...), nil
}
