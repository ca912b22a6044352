package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiTokensTotal,
		aiCallsLatencyMs,
		aiProviderFallbacks,
		aiCacheHits,
		aiCacheMisses,
		aiRateLimitWaitMs,
		aiRateLimitDegraded,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Sum of total tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"provider", "model", "success"},
	)

	aiProviderFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_fallbacks",
			Help: "Count of failed provider attempts that moved on to the next provider.",
		},
		[]string{"provider"},
	)

	aiCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_cache_hits",
			Help: "Responses served from the persisted response cache.",
		},
	)

	aiCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_cache_misses",
			Help: "Generate calls that had to reach a provider.",
		},
	)

	aiRateLimitWaitMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_rate_limit_wait_ms",
			Help:    "Time spent waiting for a rate-limit slot in milliseconds.",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 15000, 30000},
		},
		[]string{"provider"},
	)

	aiRateLimitDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_rate_limit_degraded",
			Help: "Times the limiter hit its wait ceiling and reset its window.",
		},
		[]string{"provider"},
	)
)

func ObserveAICall(provider, model string, in, out, total int, latencyMs int, success bool) {
	aiTokensIn.WithLabelValues(provider, model).Add(float64(in))
	aiTokensOut.WithLabelValues(provider, model).Add(float64(out))
	aiTokensTotal.WithLabelValues(provider, model).Add(float64(total))
	aiCallsLatencyMs.WithLabelValues(provider, model, strconv.FormatBool(success)).Observe(float64(latencyMs))
}

func IncProviderFallback(provider string) { aiProviderFallbacks.WithLabelValues(provider).Inc() }
func IncCacheHit()                        { aiCacheHits.Inc() }
func IncCacheMiss()                       { aiCacheMisses.Inc() }

func ObserveRateLimitWait(provider string, waitMs int) {
	aiRateLimitWaitMs.WithLabelValues(provider).Observe(float64(waitMs))
}

func IncRateLimitDegraded(provider string) { aiRateLimitDegraded.WithLabelValues(provider).Inc() }
