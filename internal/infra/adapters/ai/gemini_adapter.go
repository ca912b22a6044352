package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"ai-agent-pipeline/internal/config"
	"ai-agent-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ProviderAdapter = (*GeminiAdapter)(nil)

var geminiBuiltinModels = map[string]string{
	"fast":  "gemini-2.0-flash",
	"smart": "gemini-2.5-pro",
	"code":  "gemini-2.0-flash",
}

// GeminiAdapter is the hosted free-tier provider, using the official SDK.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	models map[string]string
}

func NewGeminiAdapter(ctx context.Context, cfg config.ProviderConfig) (*GeminiAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiAdapter{
		client: c,
		model:  model,
		models: mergeModelTable(geminiBuiltinModels, cfg.Models),
	}, nil
}

func (g *GeminiAdapter) Name() string         { return "gemini" }
func (g *GeminiAdapter) DefaultModel() string { return g.model }

func (g *GeminiAdapter) ResolveModel(alias string) string {
	return resolveAlias(alias, g.model, g.models)
}

func (g *GeminiAdapter) Generate(ctx context.Context, model string, req adapter.GenerateRequest) (string, adapter.Usage, error) {
	if model == "" {
		model = g.model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.JSONMode || req.JSONSchema != nil {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Deterministic {
		cfg.Temperature = genai.Ptr[float32](0)
	} else if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr[float32](float32(req.Temperature))
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	text := resp.Text()
	if text == "" {
		return "", adapter.Usage{}, errors.New("gemini: empty response")
	}

	var usage adapter.Usage
	if um := resp.UsageMetadata; um != nil {
		usage = adapter.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}
	return text, usage, nil
}
