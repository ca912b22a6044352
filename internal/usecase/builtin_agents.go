package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
)

// Built-in content pipeline agents. Prompt construction here is
// deliberately thin; each agent maps named inputs to one or two LLM calls
// and returns named outputs that the engine merges into shared state.

const (
	AgentTopicIdentification = "topic_identification"
	AgentResearch            = "research"
	AgentOutlineCreation     = "outline_creation"
	AgentIntroductionWriter  = "introduction_writer"
	AgentSectionWriter       = "section_writer"
)

// RegisterBuiltinAgents wires the standard agent set into the factory.
func RegisterBuiltinAgents(f *AgentFactory) {
	f.Register(AgentTopicIdentification, func(deps AgentDeps) (ports.Agent, error) {
		return &topicIdentificationAgent{llm: deps.LLM, log: deps.Log}, nil
	})
	f.Register(AgentResearch, func(deps AgentDeps) (ports.Agent, error) {
		return &researchAgent{retrieval: deps.Retrieval, log: deps.Log}, nil
	})
	f.Register(AgentOutlineCreation, func(deps AgentDeps) (ports.Agent, error) {
		return &outlineCreationAgent{llm: deps.LLM}, nil
	})
	f.Register(AgentIntroductionWriter, func(deps AgentDeps) (ports.Agent, error) {
		return &introductionWriterAgent{llm: deps.LLM}, nil
	})
	f.Register(AgentSectionWriter, func(deps AgentDeps) (ports.Agent, error) {
		return &sectionWriterAgent{llm: deps.LLM}, nil
	})
}

func stringInput(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// topicIdentificationAgent passes an explicit topic through, or derives one
// from raw content when the caller gave none.
type topicIdentificationAgent struct {
	llm adapter.LLMClient
	log *zerolog.Logger
}

func (a *topicIdentificationAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	if topic := stringInput(input, "topic"); topic != "" {
		return map[string]any{"topic": topic}, nil
	}
	content := stringInput(input, "content")
	if content == "" {
		return nil, fmt.Errorf("%w: no topic and no content to derive one from", domain.ErrInvalidArgument)
	}
	out, err := a.llm.Generate(ctx, adapter.GenerateRequest{
		Prompt:       "Identify the single main topic of the following content. Answer with the topic only.\n\n" + content,
		SystemPrompt: "You are a precise editorial assistant.",
		Model:        "fast",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"topic": strings.TrimSpace(out)}, nil
}

// researchAgent gathers supporting context from the retrieval collaborator.
// Without a retrieval backend it degrades to an empty research note rather
// than failing the pipeline.
type researchAgent struct {
	retrieval adapter.RetrievalAdapter
	log       *zerolog.Logger
}

func (a *researchAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	topic := stringInput(input, "topic")
	if topic == "" {
		return nil, fmt.Errorf("%w: research needs a topic", domain.ErrInvalidArgument)
	}
	if a.retrieval == nil {
		return map[string]any{"research": ""}, nil
	}
	docs, err := a.retrieval.Query(ctx, "default", topic, 3)
	if err != nil {
		a.log.Warn().Err(err).Str("topic", topic).Msg("retrieval query failed, continuing without research")
		return map[string]any{"research": ""}, nil
	}
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Content)
		b.WriteString("\n\n")
	}
	return map[string]any{"research": strings.TrimSpace(b.String())}, nil
}

type outlineCreationAgent struct {
	llm adapter.LLMClient
}

func (a *outlineCreationAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	topic := stringInput(input, "topic")
	if topic == "" {
		return nil, fmt.Errorf("%w: outline needs a topic", domain.ErrInvalidArgument)
	}
	prompt := "Write a concise article outline for the topic: " + topic
	if research := stringInput(input, "research"); research != "" {
		prompt += "\n\nUse this background material:\n" + research
	}
	out, err := a.llm.Generate(ctx, adapter.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: "You are an experienced content strategist.",
		Model:        "smart",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"outline": strings.TrimSpace(out)}, nil
}

// introductionWriterAgent needs the topic and the outline from earlier
// steps, not the raw initial input.
type introductionWriterAgent struct {
	llm adapter.LLMClient
}

func (a *introductionWriterAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	topic := stringInput(input, "topic")
	outline := stringInput(input, "outline")
	if topic == "" || outline == "" {
		return nil, fmt.Errorf("%w: introduction needs topic and outline", domain.ErrInvalidArgument)
	}
	out, err := a.llm.Generate(ctx, adapter.GenerateRequest{
		Prompt:       "Write an engaging introduction for an article about " + topic + ", following this outline:\n" + outline,
		SystemPrompt: "You are a skilled technical writer.",
		Model:        "smart",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"intro": strings.TrimSpace(out)}, nil
}

type sectionWriterAgent struct {
	llm adapter.LLMClient
}

func (a *sectionWriterAgent) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	topic := stringInput(input, "topic")
	outline := stringInput(input, "outline")
	if topic == "" || outline == "" {
		return nil, fmt.Errorf("%w: sections need topic and outline", domain.ErrInvalidArgument)
	}
	prompt := "Write the body sections for an article about " + topic + ", following this outline:\n" + outline
	if intro := stringInput(input, "intro"); intro != "" {
		prompt += "\n\nThe article opens with:\n" + intro
	}
	out, err := a.llm.Generate(ctx, adapter.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: "You are a skilled technical writer.",
		Model:        "smart",
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"sections": strings.TrimSpace(out)}, nil
}
