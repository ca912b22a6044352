package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ai-agent-pipeline/internal/config"
	"ai-agent-pipeline/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ProviderAdapter = (*OllamaAdapter)(nil)

var ollamaBuiltinModels = map[string]string{
	"fast":  "llama3.2:3b",
	"smart": "llama3.1:8b",
	"code":  "qwen2.5-coder:7b",
}

// OllamaAdapter talks to a local Ollama server via its generate API.
type OllamaAdapter struct {
	base   string // e.g., http://localhost:11434
	model  string
	models map[string]string
	client *http.Client
}

func NewOllamaAdapter(cfg config.ProviderConfig) (*OllamaAdapter, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("ollama base url empty")
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "llama3.1:8b"
	}
	return &OllamaAdapter{
		base:   cfg.BaseURL,
		model:  model,
		models: mergeModelTable(ollamaBuiltinModels, cfg.Models),
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (o *OllamaAdapter) Name() string         { return "ollama" }
func (o *OllamaAdapter) DefaultModel() string { return o.model }

func (o *OllamaAdapter) ResolveModel(alias string) string {
	return resolveAlias(alias, o.model, o.models)
}

func (o *OllamaAdapter) Generate(ctx context.Context, model string, req adapter.GenerateRequest) (string, adapter.Usage, error) {
	if model == "" {
		model = o.model
	}

	body := map[string]any{
		"model":  model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.SystemPrompt != "" {
		body["system"] = req.SystemPrompt
	}
	if req.JSONSchema != nil {
		body["format"] = req.JSONSchema
	} else if req.JSONMode {
		body["format"] = "json"
	}
	opts := map[string]any{}
	if req.Deterministic {
		opts["temperature"] = 0.0
	} else if req.Temperature > 0 {
		opts["temperature"] = req.Temperature
	}
	if len(opts) > 0 {
		body["options"] = opts
	}

	b, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", adapter.Usage{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", adapter.Usage{}, fmt.Errorf("ollama http %d", resp.StatusCode)
	}

	var payload struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", adapter.Usage{}, err
	}
	if payload.Response == "" {
		return "", adapter.Usage{}, errors.New("ollama: empty response")
	}
	usage := adapter.Usage{
		PromptTokens:     payload.PromptEvalCount,
		CompletionTokens: payload.EvalCount,
		TotalTokens:      payload.PromptEvalCount + payload.EvalCount,
	}
	return payload.Response, usage, nil
}
