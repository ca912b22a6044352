package ai

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	"ai-agent-pipeline/internal/infra/metrics"
)

var _ adapter.LLMClient = (*ResilientClient)(nil)

// ResilientClient wraps the configured providers behind one Generate call:
// response cache, priority fallback chain, per-provider rate limiting and
// model alias mapping. It fails only when every candidate provider failed.
type ResilientClient struct {
	providers []adapter.ProviderAdapter // priority order
	byName    map[string]adapter.ProviderAdapter
	limiters  map[string]*SlidingWindowLimiter
	cache     *ResponseCache
	log       *zerolog.Logger

	calls  atomic.Int64
	tokens atomic.Int64
}

// NewResilientClient keeps providers in the given priority order, promoting
// preferred (when configured and present) to the front while preserving the
// relative order of the rest.
func NewResilientClient(
	providers []adapter.ProviderAdapter,
	preferred string,
	limiters map[string]*SlidingWindowLimiter,
	cache *ResponseCache,
	logger *zerolog.Logger,
) *ResilientClient {
	ordered := make([]adapter.ProviderAdapter, 0, len(providers))
	byName := make(map[string]adapter.ProviderAdapter, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	if p, ok := byName[preferred]; ok {
		ordered = append(ordered, p)
	}
	for _, p := range providers {
		if p.Name() == preferred {
			continue
		}
		ordered = append(ordered, p)
	}

	l := logger.With().Str("component", "ResilientClient").Logger()
	return &ResilientClient{
		providers: ordered,
		byName:    byName,
		limiters:  limiters,
		cache:     cache,
		log:       &l,
	}
}

// Providers returns the effective priority order.
func (c *ResilientClient) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Stats exposes monotonic counters for delta measurement across a step.
func (c *ResilientClient) Stats() adapter.LLMStats {
	return adapter.LLMStats{
		Calls:      c.calls.Load(),
		TokensUsed: c.tokens.Load(),
	}
}

func (c *ResilientClient) candidates(req adapter.GenerateRequest) []adapter.ProviderAdapter {
	if req.Provider != "" {
		if p, ok := c.byName[req.Provider]; ok {
			return []adapter.ProviderAdapter{p}
		}
		return nil
	}
	return c.providers
}

// Generate runs the fallback chain. A cache hit returns immediately with no
// provider call and no rate-limit consumption. When every provider fails,
// the LAST provider's error is raised, wrapped as a ProviderError.
func (c *ResilientClient) Generate(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	key := CacheKey(req)
	if out, ok := c.cache.Get(key); ok {
		metrics.IncCacheHit()
		c.log.Debug().Str("key", key[:12]).Msg("cache hit")
		return out, nil
	}
	metrics.IncCacheMiss()

	cands := c.candidates(req)
	if len(cands) == 0 {
		return "", domain.ErrNoProviderAvailable
	}

	var lastErr error
	var lastProvider string
	for _, p := range cands {
		model := p.ResolveModel(req.Model)

		if lim := c.limiters[p.Name()]; lim != nil {
			if err := lim.Acquire(ctx); err != nil {
				// only context cancellation reaches here; propagate
				return "", err
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if req.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		}

		start := time.Now()
		out, usage, err := p.Generate(callCtx, model, req)
		latency := time.Since(start)
		if cancel != nil {
			cancel()
		}

		c.calls.Add(1)
		if err != nil {
			c.log.Warn().Err(err).
				Str("provider", p.Name()).
				Str("model", model).
				Dur("latency", latency).
				Msg("provider attempt failed, trying next")
			metrics.IncProviderFallback(p.Name())
			metrics.ObserveAICall(p.Name(), model, 0, 0, 0, int(latency/time.Millisecond), false)
			lastErr, lastProvider = err, p.Name()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}

		total := usage.TotalTokens
		if total == 0 {
			total = estimateTokens(req.Prompt) + estimateTokens(out)
		}
		c.tokens.Add(int64(total))
		metrics.ObserveAICall(p.Name(), model, usage.PromptTokens, usage.CompletionTokens, total, int(latency/time.Millisecond), true)

		// cache key is provider agnostic: any provider's answer satisfies
		// future identical requests
		c.cache.Put(key, out)
		return out, nil
	}

	return "", &domain.ProviderError{Provider: lastProvider, Err: lastErr}
}
