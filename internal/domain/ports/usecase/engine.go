package usecase

import (
	"context"

	"ai-agent-pipeline/internal/domain/model"
)

// RunRequest submits one pipeline run. Steps may be given directly or
// resolved from a named workflow by the caller; JobID is derived when empty.
type RunRequest struct {
	WorkflowName string
	Steps        []model.StepSpec
	InitialInput map[string]any
	JobID        string
}

// PipelineRunner executes an ordered step list and returns the terminal Job.
// Sequential, parallel-batch and mesh strategies all satisfy this contract.
type PipelineRunner interface {
	Run(ctx context.Context, req RunRequest) (*model.Job, error)
}

// Agent executes one step. Agents internally call the LLM client zero or
// more times; the engine does not inspect how.
type Agent interface {
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}
