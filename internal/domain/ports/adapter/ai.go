package adapter

import (
	"context"
	"time"
)

// GenerateRequest carries one text-generation call through the resilient
// client. Model may be empty (provider default), a generic alias
// ("default", "fast", "smart", "code"), or a provider-specific name.
// Provider, when set, pins the call to that provider only.
type GenerateRequest struct {
	Prompt        string
	SystemPrompt  string
	JSONMode      bool
	JSONSchema    map[string]any
	Model         string
	Provider      string
	Temperature   float64
	Deterministic bool // force temperature 0 for reproducible output
	Timeout       time.Duration
}

// Usage for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMStats are monotonic counters exposed by the client so callers can
// delta-measure calls and tokens across an execution window.
type LLMStats struct {
	Calls      int64
	TokensUsed int64
}

// ProviderAdapter is one concrete upstream (local inference, hosted free
// tier, paid API). ResolveModel maps a generic alias to this provider's
// concrete model identifier; unknown names pass through unchanged.
type ProviderAdapter interface {
	Name() string
	DefaultModel() string
	ResolveModel(alias string) string
	Generate(ctx context.Context, model string, req GenerateRequest) (string, Usage, error)
}

// LLMClient is the port agents consume. Generate fails only when every
// configured provider failed.
type LLMClient interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Stats() LLMStats
}
