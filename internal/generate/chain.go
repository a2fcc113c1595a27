package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Chain tries providers in configured order until one succeeds. Each attempt
// runs under its own timeout so one slow provider cannot consume the whole
// request deadline.
type Chain struct {
	providers []Provider
	limiters  map[string]*rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

type ChainOption func(*Chain)

func WithChainLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger }
}

func WithChainMetrics(m *Metrics) ChainOption {
	return func(c *Chain) { c.metrics = m }
}

// WithProviderRateLimit caps request throughput for one provider. Attempts
// over the budget skip to the next provider instead of queueing.
func WithProviderRateLimit(name string, rps float64) ChainOption {
	return func(c *Chain) {
		burst := int(rps)
		if rps > 0 && burst < 1 {
			burst = 1
		}
		c.limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewChain(timeout time.Duration, providers []Provider, opts ...ChainOption) *Chain {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Chain{
		providers: providers,
		limiters:  make(map[string]*rate.Limiter),
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete walks the chain in order. The returned completion carries
// FellBack when any earlier provider was tried and failed.
func (c *Chain) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	if len(c.providers) == 0 {
		return nil, ErrAllProvidersExhausted
	}

	var errs []error
	for i, p := range c.providers {
		if lim, ok := c.limiters[p.Name()]; ok && !lim.Allow() {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrRateLimited))
			c.record(p.Name(), "rate_limited")
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		comp, err := p.Complete(attemptCtx, prompt)
		cancel()

		if c.metrics != nil {
			c.metrics.Latency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			c.record(p.Name(), "error")
			if c.logger != nil {
				c.logger.WarnContext(ctx, "provider failed, trying next",
					"provider", p.Name(), "attempt", i+1, "error", err)
			}
			// The caller's context is gone; later providers would fail the
			// same way.
			if ctx.Err() != nil {
				break
			}
			continue
		}

		c.record(p.Name(), "ok")
		if i > 0 {
			comp.FellBack = true
			if c.metrics != nil {
				c.metrics.Fallbacks.Inc()
			}
		}
		return comp, nil
	}

	if c.metrics != nil {
		c.metrics.Exhausted.Inc()
	}
	errs = append(errs, ErrAllProvidersExhausted)
	return nil, errors.Join(errs...)
}

func (c *Chain) record(provider, outcome string) {
	if c.metrics != nil {
		c.metrics.Attempts.WithLabelValues(provider, outcome).Inc()
	}
}
