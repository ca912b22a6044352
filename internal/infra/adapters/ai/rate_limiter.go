package ai

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/infra/metrics"
)

// maxSleepSlice bounds each individual sleep so a waiting caller stays
// responsive to context cancellation and the overall deadline.
const maxSleepSlice = 250 * time.Millisecond

// SlidingWindowLimiter enforces a per-provider requests-per-minute cap over
// a rolling 60-second window of request timestamps. All window mutation
// happens under one mutex; the lock is never held while sleeping.
type SlidingWindowLimiter struct {
	mu       sync.Mutex
	provider string
	rpm      int
	window   []time.Time

	windowDur time.Duration // rolling window size, 60s outside tests
	maxWait   time.Duration // total wait ceiling, independent of rpm
	log       *zerolog.Logger
}

// NewSlidingWindowLimiter clamps rpm to a minimum of 1; zero or negative
// input is accepted silently.
func NewSlidingWindowLimiter(provider string, rpm int, maxWait time.Duration, logger *zerolog.Logger) *SlidingWindowLimiter {
	if rpm < 1 {
		rpm = 1
	}
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	l := logger.With().Str("component", "RateLimiter").Str("provider", provider).Logger()
	return &SlidingWindowLimiter{
		provider:  provider,
		rpm:       rpm,
		window:    make([]time.Time, 0, rpm),
		windowDur: time.Minute,
		maxWait:   maxWait,
		log:       &l,
	}
}

func (l *SlidingWindowLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.windowDur)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// TryAcquire takes a slot without blocking. It reports false when the
// window is at capacity.
func (l *SlidingWindowLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.pruneLocked(now)
	if len(l.window) < l.rpm {
		l.window = append(l.window, now)
		return true
	}
	return false
}

// Acquire blocks until a slot frees up, the context is canceled, or the
// total wait exceeds maxWait. On hitting the ceiling the window is cleared
// and the slot granted anyway: liveness is preferred over strict
// enforcement, and the degradation is surfaced via log and metric.
func (l *SlidingWindowLimiter) Acquire(ctx context.Context) error {
	start := time.Now()
	deadline := start.Add(l.maxWait)

	for {
		l.mu.Lock()
		now := time.Now()
		l.pruneLocked(now)
		if len(l.window) < l.rpm {
			l.window = append(l.window, now)
			l.mu.Unlock()
			metrics.ObserveRateLimitWait(l.provider, int(time.Since(start)/time.Millisecond))
			return nil
		}
		oldest := l.window[0]
		l.mu.Unlock()

		if !now.Before(deadline) {
			l.mu.Lock()
			l.window = append(l.window[:0], now)
			l.mu.Unlock()
			l.log.Warn().
				Dur("waited", now.Sub(start)).
				Msg("rate limit degraded: wait ceiling hit, window reset")
			metrics.IncRateLimitDegraded(l.provider)
			metrics.ObserveRateLimitWait(l.provider, int(time.Since(start)/time.Millisecond))
			return nil
		}

		wait := oldest.Add(l.windowDur).Sub(now)
		if wait > maxSleepSlice {
			wait = maxSleepSlice
		}
		if rem := deadline.Sub(now); wait > rem {
			wait = rem
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
