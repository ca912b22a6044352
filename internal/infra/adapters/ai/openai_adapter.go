package ai

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"ai-agent-pipeline/internal/config"
	"ai-agent-pipeline/internal/domain/ports/adapter"
)

var _ adapter.ProviderAdapter = (*OpenAIAdapter)(nil)

var openaiBuiltinModels = map[string]string{
	"fast":  "gpt-4o-mini",
	"smart": "gpt-4o",
	"code":  "gpt-4o",
}

// OpenAIAdapter is the paid provider, last in the default fallback chain.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	models map[string]string
}

func NewOpenAIAdapter(cfg config.ProviderConfig) (*OpenAIAdapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		models: mergeModelTable(openaiBuiltinModels, cfg.Models),
	}, nil
}

func (o *OpenAIAdapter) Name() string         { return "openai" }
func (o *OpenAIAdapter) DefaultModel() string { return o.model }

func (o *OpenAIAdapter) ResolveModel(alias string) string {
	return resolveAlias(alias, o.model, o.models)
}

func (o *OpenAIAdapter) Generate(ctx context.Context, model string, req adapter.GenerateRequest) (string, adapter.Usage, error) {
	if model == "" {
		model = o.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if req.Deterministic {
		params.Temperature = openai.Float(0)
	} else if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.JSONSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: req.JSONSchema,
				},
			},
		}
	} else if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	comp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(comp.Choices) == 0 || comp.Choices[0].Message.Content == "" {
		return "", adapter.Usage{}, errors.New("openai: no choice content")
	}

	usage := adapter.Usage{
		PromptTokens:     int(comp.Usage.PromptTokens),
		CompletionTokens: int(comp.Usage.CompletionTokens),
		TotalTokens:      int(comp.Usage.TotalTokens),
	}
	return comp.Choices[0].Message.Content, usage, nil
}
