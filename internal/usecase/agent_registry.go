package usecase

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
)

// AgentDeps is the explicit dependency table offered to agent builders.
// A builder takes only the fields it declares a use for; nothing is
// injected by introspection.
type AgentDeps struct {
	LLM       adapter.LLMClient
	Retrieval adapter.RetrievalAdapter
	Log       *zerolog.Logger
}

// AgentBuilder constructs one agent from its declared dependencies.
type AgentBuilder func(deps AgentDeps) (ports.Agent, error)

// AgentFactory resolves agent instances by type name. Each type is built
// at most once per factory and reused for every subsequent step.
type AgentFactory struct {
	deps     AgentDeps
	mu       sync.Mutex
	builders map[string]AgentBuilder
	built    map[string]ports.Agent
}

func NewAgentFactory(deps AgentDeps) *AgentFactory {
	return &AgentFactory{
		deps:     deps,
		builders: make(map[string]AgentBuilder),
		built:    make(map[string]ports.Agent),
	}
}

func (f *AgentFactory) Register(agentType string, builder AgentBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[agentType] = builder
}

// Resolve returns the cached instance, building it on first use.
func (f *AgentFactory) Resolve(agentType string) (ports.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.built[agentType]; ok {
		return a, nil
	}
	builder, ok := f.builders[agentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAgentType, agentType)
	}
	a, err := builder(f.deps)
	if err != nil {
		return nil, fmt.Errorf("build agent %s: %w", agentType, err)
	}
	f.built[agentType] = a
	return a, nil
}

// Types lists the registered agent type names.
func (f *AgentFactory) Types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.builders))
	for t := range f.builders {
		out = append(out, t)
	}
	return out
}
