package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain/model"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
	"ai-agent-pipeline/internal/infra/metrics"
	"ai-agent-pipeline/internal/infra/worker"
)

var _ ports.PipelineRunner = (*ParallelUseCase)(nil)

// stepOutputKeys names the shared-state fields each agent type produces.
// Together with stepInputRules it gives the parallel engine a hand-authored
// dependency table: a step is independent of another when neither consumes
// what the other produces.
var stepOutputKeys = map[string][]string{
	AgentTopicIdentification: {"topic"},
	AgentResearch:            {"research"},
	AgentOutlineCreation:     {"outline"},
	AgentIntroductionWriter:  {"intro"},
	AgentSectionWriter:       {"sections"},
}

// ParallelUseCase is the batch strategy: same Run contract and Job model as
// the sequential engine, but independent steps of a wave execute
// concurrently on the worker pool. Steps never scheduled after a failure
// are recorded as SKIPPED.
type ParallelUseCase struct {
	seq  *PipelineUseCase
	pool *worker.Pool
	log  *zerolog.Logger
}

func NewParallelUseCase(seq *PipelineUseCase, pool *worker.Pool, logger *zerolog.Logger) *ParallelUseCase {
	l := logger.With().Str("component", "ParallelUseCase").Logger()
	return &ParallelUseCase{seq: seq, pool: pool, log: &l}
}

// producesFor reports whether any pending step (other than idx) produces an
// input that steps[idx] consumes.
func waitingOnPending(steps []model.StepSpec, pending map[int]bool, idx int) bool {
	needs := stepInputRules[steps[idx].AgentType]
	for other := range pending {
		if other == idx {
			continue
		}
		for _, produced := range stepOutputKeys[steps[other].AgentType] {
			for _, need := range needs {
				if produced == need {
					return true
				}
			}
		}
	}
	return false
}

func (uc *ParallelUseCase) Run(ctx context.Context, req ports.RunRequest) (*model.Job, error) {
	job := newJob(req)

	if err := validateRun(req); err != nil {
		job.Status = model.JobStatusFailed
		job.RecordError(err.Error())
		job.StartedAt = time.Now()
		job.Finish()
		metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
		return job, nil
	}

	job.Status = model.JobStatusRunning
	job.StartedAt = time.Now()
	defer job.Finish()

	pending := make(map[int]bool, len(req.Steps))
	for i := range req.Steps {
		pending[i] = true
	}

	failed := false
	for len(pending) > 0 && !failed {
		// select the wave of steps with no unmet producer
		var wave []int
		for i := 0; i < len(req.Steps); i++ {
			if pending[i] && !waitingOnPending(req.Steps, pending, i) {
				wave = append(wave, i)
			}
		}
		if len(wave) == 0 {
			// dependency table gave no progress; fall back to the first
			// pending step to preserve the sequential semantics
			for i := 0; i < len(req.Steps); i++ {
				if pending[i] {
					wave = []int{i}
					break
				}
			}
		}

		results := make([]model.AgentExecutionResult, len(wave))
		var wg sync.WaitGroup
		for wi, stepIdx := range wave {
			wi, stepIdx := wi, stepIdx
			step := req.Steps[stepIdx]
			wg.Add(1)
			task := func(taskCtx context.Context) error {
				defer wg.Done()
				results[wi] = uc.seq.executeStep(ctx, job, req, step)
				return nil
			}
			if err := uc.pool.Submit(task); err != nil {
				// saturated pool: run inline rather than dropping the step
				go func() { _ = task(ctx) }()
			}
		}
		wg.Wait()

		// record in step order; merge outputs before the next wave starts
		for wi, stepIdx := range wave {
			res := results[wi]
			job.StepResults = append(job.StepResults, res)
			delete(pending, stepIdx)

			if res.Status == model.StepStatusCompleted {
				for k, v := range res.OutputData {
					job.SharedState[k] = v
				}
			} else {
				job.RecordError(res.Error)
				failed = true
			}

			if err := uc.seq.checkpoint(ctx, job, stepIdx, req.Steps[stepIdx]); err != nil {
				job.RecordError(err.Error())
				job.Status = terminalStatus(job, true)
				metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
				return job, err
			}
		}

		if failed {
			// never-scheduled steps are skipped, not silently dropped
			for i := 0; i < len(req.Steps); i++ {
				if pending[i] {
					job.StepResults = append(job.StepResults, model.AgentExecutionResult{
						StepID: req.Steps[i].StepID(),
						Status: model.StepStatusSkipped,
					})
					delete(pending, i)
				}
			}
		}
		if ctx.Err() != nil {
			job.RecordError(ctx.Err().Error())
			job.Status = terminalStatus(job, true)
			metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
			return job, ctx.Err()
		}
	}

	job.Status = terminalStatus(job, failed)
	metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
	return job, nil
}
