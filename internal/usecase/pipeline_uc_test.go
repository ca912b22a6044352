package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
)

// scriptedLLM answers every generate call with a canned reply and keeps
// the same monotonic counters the real client exposes.
type scriptedLLM struct {
	calls  atomic.Int64
	tokens atomic.Int64
	reply  func(req adapter.GenerateRequest) (string, error)
}

func (s *scriptedLLM) Generate(_ context.Context, req adapter.GenerateRequest) (string, error) {
	s.calls.Add(1)
	if s.reply != nil {
		out, err := s.reply(req)
		if err != nil {
			return "", err
		}
		s.tokens.Add(5)
		return out, nil
	}
	s.tokens.Add(5)
	return "stub output", nil
}

func (s *scriptedLLM) Stats() adapter.LLMStats {
	return adapter.LLMStats{Calls: s.calls.Load(), TokensUsed: s.tokens.Load()}
}

func newTestEngine(t *testing.T, llm adapter.LLMClient) (*PipelineUseCase, *CheckpointManager, *memStore) {
	t.Helper()
	store := newMemStore()
	manager := NewCheckpointManager(store, nopLogger())
	factory := NewAgentFactory(AgentDeps{LLM: llm, Log: nopLogger()})
	RegisterBuiltinAgents(factory)
	factory.Register("boom", func(AgentDeps) (ports.Agent, error) {
		return agentFunc(func(context.Context, map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("agent exploded")
		}), nil
	})
	return NewPipelineUseCase(factory, llm, manager, time.Minute, nopLogger()), manager, store
}

type agentFunc func(ctx context.Context, input map[string]any) (map[string]any, error)

func (f agentFunc) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return f(ctx, input)
}

func articleSteps(types ...string) []model.StepSpec {
	steps := make([]model.StepSpec, len(types))
	for i, tp := range types {
		steps[i] = model.StepSpec{AgentType: tp}
	}
	return steps
}

func TestRun_CompletesOutlineIntroPipeline(t *testing.T) {
	t.Parallel()
	llm := &scriptedLLM{}
	engine, manager, _ := newTestEngine(t, llm)

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "outline_intro",
		Steps:        articleSteps(AgentTopicIdentification, AgentOutlineCreation, AgentIntroductionWriter),
		InitialInput: map[string]any{"topic": "Python Decorators"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if job.Status != model.JobStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (error %q)", job.Status, job.Error)
	}
	for _, key := range []string{"topic", "outline", "intro"} {
		v, ok := job.SharedState[key].(string)
		if !ok || v == "" {
			t.Fatalf("shared_state missing %q: %#v", key, job.SharedState)
		}
	}
	if got := job.SharedState["topic"]; got != "Python Decorators" {
		t.Fatalf("topic passthrough broken: %v", got)
	}
	if len(job.StepResults) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(job.StepResults))
	}
	for i, res := range job.StepResults {
		if res.Status != model.StepStatusCompleted {
			t.Fatalf("step %d: %s (%s)", i, res.Status, res.Error)
		}
	}
	// topic passthrough makes no LLM call; outline and intro make one each
	if job.StepResults[0].LLMCalls != 0 || job.StepResults[1].LLMCalls != 1 || job.StepResults[2].LLMCalls != 1 {
		t.Fatalf("per-step call attribution wrong: %d/%d/%d",
			job.StepResults[0].LLMCalls, job.StepResults[1].LLMCalls, job.StepResults[2].LLMCalls)
	}
	if job.Duration <= 0 {
		t.Fatalf("duration not set")
	}

	metas, err := manager.List(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("list checkpoints: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("expected a checkpoint per step, got %d", len(metas))
	}
}

func TestRun_MidStepFailureYieldsPartial(t *testing.T) {
	t.Parallel()
	llm := &scriptedLLM{}
	engine, manager, _ := newTestEngine(t, llm)

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "partial",
		Steps:        articleSteps(AgentTopicIdentification, "boom", AgentOutlineCreation),
		InitialInput: map[string]any{"topic": "Go"},
	})
	if err != nil {
		t.Fatalf("step failures must not surface as run errors: %v", err)
	}

	if job.Status != model.JobStatusPartial {
		t.Fatalf("expected PARTIAL, got %s", job.Status)
	}
	if len(job.StepResults) != 2 {
		t.Fatalf("step 3 must never run: got %d results", len(job.StepResults))
	}
	if job.StepResults[0].Status != model.StepStatusCompleted {
		t.Fatalf("step 1: %s", job.StepResults[0].Status)
	}
	if job.StepResults[1].Status != model.StepStatusFailed || job.StepResults[1].Error == "" {
		t.Fatalf("step 2 should be FAILED with an error, got %s %q",
			job.StepResults[1].Status, job.StepResults[1].Error)
	}
	if job.Error == "" {
		t.Fatalf("job error should carry the first failure")
	}
	if job.StepResults[1].ExecutionTime <= 0 {
		t.Fatalf("failed steps still get a measured execution time")
	}

	// the failing step is checkpointed too
	metas, _ := manager.List(context.Background(), job.ID)
	if len(metas) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(metas))
	}
}

func TestRun_FirstStepFailureYieldsFailed(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(t, &scriptedLLM{})

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "doomed",
		Steps:        articleSteps("boom"),
		InitialInput: map[string]any{"topic": "Go"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("no completed steps means FAILED, got %s", job.Status)
	}
}

func TestRun_ValidationRejectsWithoutCheckpoint(t *testing.T) {
	t.Parallel()
	engine, _, store := newTestEngine(t, &scriptedLLM{})

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "invalid",
		Steps:        articleSteps(AgentTopicIdentification),
		InitialInput: map[string]any{},
	})
	if err != nil {
		t.Fatalf("validation failures are terminal job states, not errors: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if len(job.StepResults) != 0 {
		t.Fatalf("no step may run on a rejected job")
	}
	if job.Error == "" {
		t.Fatalf("rejection reason missing")
	}
	if job.Duration <= 0 {
		t.Fatalf("rejected jobs still get a duration")
	}
	jobs, _ := store.Jobs(context.Background())
	if len(jobs) != 0 {
		t.Fatalf("rejected jobs must not checkpoint, found %v", jobs)
	}
}

func TestRun_EmptyStepsRejected(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(t, &scriptedLLM{})

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "empty",
		InitialInput: map[string]any{"topic": "Go"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
}

func TestRun_CheckpointFailureSurfaces(t *testing.T) {
	t.Parallel()
	llm := &scriptedLLM{}
	manager := NewCheckpointManager(failStore{}, nopLogger())
	factory := NewAgentFactory(AgentDeps{LLM: llm, Log: nopLogger()})
	RegisterBuiltinAgents(factory)
	engine := NewPipelineUseCase(factory, llm, manager, time.Minute, nopLogger())

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "cp-down",
		Steps:        articleSteps(AgentTopicIdentification),
		InitialInput: map[string]any{"topic": "Go"},
	})
	var cpErr *domain.CheckpointError
	if !errors.As(err, &cpErr) {
		t.Fatalf("expected CheckpointError, got %v", err)
	}
	if job == nil || job.Duration <= 0 {
		t.Fatalf("job must still come back finished")
	}
}

func TestRun_UnknownAgentTypeFailsStep(t *testing.T) {
	t.Parallel()
	engine, _, _ := newTestEngine(t, &scriptedLLM{})

	job, err := engine.Run(context.Background(), ports.RunRequest{
		WorkflowName: "unknown-agent",
		Steps:        articleSteps("does_not_exist"),
		InitialInput: map[string]any{"topic": "Go"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Fatalf("expected FAILED, got %s", job.Status)
	}
	if !strings.Contains(job.StepResults[0].Error, domain.ErrUnknownAgentType.Error()) {
		t.Fatalf("step error should name the unknown agent type: %#v", job.StepResults[0])
	}
}

func TestDeriveJobID(t *testing.T) {
	t.Parallel()
	t0 := time.Now()
	t1 := t0.Add(time.Nanosecond)

	a := deriveJobID("Go", "article", t0)
	b := deriveJobID("Go", "article", t1)
	if a == b {
		t.Fatalf("same topic at different times must yield different ids")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
	if deriveJobID("Go", "article", t0) != a {
		t.Fatalf("id derivation must be deterministic for fixed inputs")
	}
	if deriveJobID("", "article", t0) == deriveJobID("", "article", t0) {
		t.Fatalf("topicless jobs must get unique random ids")
	}
}

func TestRun_SharedStateIsolatedAcrossJobs(t *testing.T) {
	t.Parallel()
	llm := &scriptedLLM{}
	engine, _, _ := newTestEngine(t, llm)
	ctx := context.Background()

	jobA, err := engine.Run(ctx, ports.RunRequest{
		WorkflowName: "iso",
		Steps:        articleSteps(AgentTopicIdentification),
		InitialInput: map[string]any{"topic": "Rust"},
	})
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	jobB, err := engine.Run(ctx, ports.RunRequest{
		WorkflowName: "iso",
		Steps:        articleSteps(AgentTopicIdentification),
		InitialInput: map[string]any{"topic": "Zig"},
	})
	if err != nil {
		t.Fatalf("run b: %v", err)
	}

	if jobA.ID == jobB.ID {
		t.Fatalf("distinct submissions share a job id")
	}
	if jobA.SharedState["topic"] != "Rust" || jobB.SharedState["topic"] != "Zig" {
		t.Fatalf("shared state leaked across jobs: %v / %v",
			jobA.SharedState["topic"], jobB.SharedState["topic"])
	}
}
