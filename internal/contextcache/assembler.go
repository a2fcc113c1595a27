package contextcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"compass/internal/conversation"
	"compass/internal/domain"
	"compass/pkg/sentinel"
)

const contextKeyPrefix = "ctx:user:"

// Assembler serves ConversationContext cache-aside over the durable turn log.
// The log is the source of truth; cache entries expire wholesale on the idle
// TTL and are rebuilt lazily.
type Assembler struct {
	cache       Cache
	log         conversation.Log
	turnLimit   int
	tokenBudget int
	ttl         time.Duration
	group       singleflight.Group
	logger      *slog.Logger
	metrics     *Metrics
}

type Option func(*Assembler)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

func NewAssembler(cache Cache, log conversation.Log, turnLimit, tokenBudget int, ttl time.Duration, opts ...Option) *Assembler {
	if turnLimit <= 0 {
		turnLimit = 10
	}
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	a := &Assembler{
		cache:       cache,
		log:         log,
		turnLimit:   turnLimit,
		tokenBudget: tokenBudget,
		ttl:         ttl,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Context returns the assembled context for the user, rebuilding from the
// durable log on miss. Concurrent misses for one handle share a single
// rebuild.
func (a *Assembler) Context(ctx context.Context, u *domain.User) (*domain.ConversationContext, error) {
	key := contextKeyPrefix + u.Handle

	raw, err := a.cache.Get(ctx, key)
	if err == nil {
		var cc domain.ConversationContext
		if err := json.Unmarshal(raw, &cc); err == nil {
			if a.metrics != nil {
				a.metrics.Hits.Inc()
			}
			return &cc, nil
		}
		// Corrupt entry: fall through to a rebuild.
		if a.logger != nil {
			a.logger.WarnContext(ctx, "discarding corrupt context cache entry", "handle", u.Handle)
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	if a.metrics != nil {
		a.metrics.Misses.Inc()
	}

	v, err, _ := a.group.Do(u.Handle, func() (any, error) {
		return a.rebuild(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ConversationContext), nil
}

// AppendTurn appends to the durable log and refreshes the cached context so
// the next read needs no rebuild.
func (a *Assembler) AppendTurn(ctx context.Context, u *domain.User, t *domain.Turn) error {
	if err := a.log.Append(ctx, t); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if _, err := a.rebuild(ctx, u); err != nil {
		// The log write already succeeded; a failed refresh only costs the
		// next read a rebuild.
		if a.logger != nil {
			a.logger.WarnContext(ctx, "context refresh failed", "handle", u.Handle, "error", err)
		}
		return a.cache.Delete(ctx, contextKeyPrefix+u.Handle)
	}
	return nil
}

// Invalidate drops the cached context wholesale.
func (a *Assembler) Invalidate(ctx context.Context, handle string) error {
	return a.cache.Delete(ctx, contextKeyPrefix+handle)
}

func (a *Assembler) rebuild(ctx context.Context, u *domain.User) (*domain.ConversationContext, error) {
	turns, err := a.log.Recent(ctx, u.Handle, a.turnLimit)
	if err != nil {
		return nil, fmt.Errorf("rebuild context: %w", err)
	}

	cc := &domain.ConversationContext{
		Handle:      u.Handle,
		Preferences: u.Preferences,
		BuiltAt:     time.Now().UTC(),
	}

	// Walk newest to oldest so the budget drops the oldest turns first.
	var kept []domain.ContextTurn
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		pair := contextTurns(t)
		cost := 0
		for _, ct := range pair {
			cost += domain.EstimateTokens(ct.Content)
		}
		if cost == 0 {
			continue
		}
		// The estimate is a hard ceiling: a single oversized turn is dropped
		// rather than busting the budget.
		if cc.EstimatedTokens+cost > a.tokenBudget {
			break
		}
		kept = append(kept, pair...)
		cc.EstimatedTokens += cost
	}

	// kept is in reverse chronological blocks; restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	cc.Turns = kept

	raw, err := json.Marshal(cc)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}
	if err := a.cache.Set(ctx, contextKeyPrefix+u.Handle, raw, a.ttl); err != nil {
		return nil, err
	}
	return cc, nil
}

// contextTurns projects one logged turn into prompt turns, newest first.
// Suppressed turns contribute only the user side.
func contextTurns(t domain.Turn) []domain.ContextTurn {
	var out []domain.ContextTurn
	if t.OutboundText != "" {
		out = append(out, domain.ContextTurn{Role: "assistant", Content: t.OutboundText})
	}
	if t.InboundText != "" {
		out = append(out, domain.ContextTurn{Role: "user", Content: t.InboundText})
	}
	return out
}
