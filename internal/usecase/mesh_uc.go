package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
)

var _ ports.PipelineRunner = (*MeshUseCase)(nil)

// MeshUseCase delegates an entire run to an external mesh/circuit-breaker
// router. The router is opaque; any error from it falls back to the
// sequential engine so the Run contract never changes for callers.
type MeshUseCase struct {
	mesh     adapter.MeshExecutor
	fallback ports.PipelineRunner
	log      *zerolog.Logger
}

func NewMeshUseCase(mesh adapter.MeshExecutor, fallback ports.PipelineRunner, logger *zerolog.Logger) *MeshUseCase {
	l := logger.With().Str("component", "MeshUseCase").Logger()
	return &MeshUseCase{mesh: mesh, fallback: fallback, log: &l}
}

func (uc *MeshUseCase) Run(ctx context.Context, req ports.RunRequest) (*model.Job, error) {
	if uc.mesh == nil || len(req.Steps) == 0 {
		return uc.fallback.Run(ctx, req)
	}

	job := newJob(req)
	started := time.Now()

	res, err := uc.mesh.ExecuteMeshWorkflow(ctx, req.WorkflowName, req.Steps[0].AgentType, req.InitialInput, job.ID)
	if err != nil {
		uc.log.Warn().Err(err).Str("job_id", job.ID).Msg("mesh router failed, falling back to sequential")
		return uc.fallback.Run(ctx, req)
	}

	// a mesh-reported failure is a terminal outcome, not a router error
	job.StartedAt = started
	job.SharedState = res.FinalOutput
	if job.SharedState == nil {
		job.SharedState = make(map[string]any)
	}
	for _, name := range res.AgentsExecuted {
		job.StepResults = append(job.StepResults, model.AgentExecutionResult{
			StepID: name,
			Status: model.StepStatusCompleted,
		})
	}
	if res.Success {
		job.Status = model.JobStatusCompleted
	} else {
		job.Status = model.JobStatusFailed
		job.RecordError(res.Error)
	}
	job.Finish()
	if res.ExecutionTime > 0 {
		job.Duration = res.ExecutionTime
		job.EndedAt = job.StartedAt.Add(res.ExecutionTime)
	}
	return job, nil
}
