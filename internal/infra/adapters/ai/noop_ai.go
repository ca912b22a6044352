package ai

import (
	"context"

	"ai-agent-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ProviderAdapter = (*NoopProvider)(nil)

// NoopProvider returns canned text. Used in dev mode and as a harness for
// wiring tests when no real provider is reachable.
type NoopProvider struct {
	Reply string
}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{Reply: "noop"}
}

func (n *NoopProvider) Name() string                     { return "noop" }
func (n *NoopProvider) DefaultModel() string             { return "noop" }
func (n *NoopProvider) ResolveModel(alias string) string { return "noop" }

func (n *NoopProvider) Generate(ctx context.Context, model string, req adapter.GenerateRequest) (string, adapter.Usage, error) {
	reply := n.Reply
	if req.JSONMode || req.JSONSchema != nil {
		reply = `{"result": "` + n.Reply + `"}`
	}
	return reply, adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}
