package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/adapter"
	ports "ai-agent-pipeline/internal/domain/ports/usecase"
	"ai-agent-pipeline/internal/infra/logging"
	"ai-agent-pipeline/internal/infra/metrics"
)

var _ ports.PipelineRunner = (*PipelineUseCase)(nil)

// stepInputRules names the shared-state fields each agent type consumes.
// A fixed, hand-authored table: acyclic by construction, so there is no
// cycle detection.
var stepInputRules = map[string][]string{
	AgentTopicIdentification: {"topic", "content"},
	AgentResearch:            {"topic"},
	AgentOutlineCreation:     {"topic", "research"},
	AgentIntroductionWriter:  {"topic", "outline"},
	AgentSectionWriter:       {"topic", "outline", "intro"},
}

// checkpointState is what gets persisted after every step.
type checkpointState struct {
	CompletedStepIndex int            `json:"completed_step_index"`
	SharedState        map[string]any `json:"shared_state"`
}

// PipelineUseCase is the sequential execution engine: it resolves agents
// via the factory, threads shared state between steps, checkpoints every
// transition and stops (without raising) on the first step failure.
type PipelineUseCase struct {
	factory     *AgentFactory
	llm         adapter.LLMClient
	checkpoints *CheckpointManager
	stepTimeout time.Duration
	log         *zerolog.Logger
}

func NewPipelineUseCase(
	factory *AgentFactory,
	llm adapter.LLMClient,
	checkpoints *CheckpointManager,
	stepTimeout time.Duration,
	logger *zerolog.Logger,
) *PipelineUseCase {
	l := logger.With().Str("component", "PipelineUseCase").Logger()
	return &PipelineUseCase{
		factory:     factory,
		llm:         llm,
		checkpoints: checkpoints,
		stepTimeout: stepTimeout,
		log:         &l,
	}
}

// deriveJobID hashes (topic, workflow, timestamp) so distinct submissions
// get distinct ids while the id stays stable for the run's lifetime.
func deriveJobID(topic, workflow string, ts time.Time) string {
	if topic == "" {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(topic + "|" + workflow + "|" + strconv.FormatInt(ts.UnixNano(), 10)))
	return hex.EncodeToString(sum[:])[:16]
}

func newJob(req ports.RunRequest) *model.Job {
	jobID := req.JobID
	if jobID == "" {
		jobID = deriveJobID(stringInput(req.InitialInput, "topic"), req.WorkflowName, time.Now())
	}
	return &model.Job{
		ID:           jobID,
		WorkflowName: req.WorkflowName,
		Status:       model.JobStatusPending,
		SharedState:  make(map[string]any),
	}
}

func validateRun(req ports.RunRequest) error {
	if len(req.Steps) == 0 {
		return &domain.ValidationError{Reason: "no steps"}
	}
	if stringInput(req.InitialInput, "topic") == "" && stringInput(req.InitialInput, "content") == "" {
		return &domain.ValidationError{Reason: "no topic and no content to derive one from"}
	}
	return nil
}

// Run executes the step list. A failing step terminates the loop in a
// degraded terminal state rather than raising; the returned error is
// non-nil only for checkpoint I/O failures and context cancellation, where
// resumability can no longer be guaranteed.
func (uc *PipelineUseCase) Run(ctx context.Context, req ports.RunRequest) (*model.Job, error) {
	job := newJob(req)
	log := uc.log.With().Str("job_id", job.ID).Str("workflow", req.WorkflowName).Logger()
	defer logging.TraceDuration(&log, "PipelineUseCase.Run")()

	if err := validateRun(req); err != nil {
		// rejected before any step: FAILED, no checkpoint
		job.Status = model.JobStatusFailed
		job.RecordError(err.Error())
		job.StartedAt = time.Now()
		job.Finish()
		metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
		log.Warn().Str("error", job.Error).Msg("job rejected")
		return job, nil
	}

	job.Status = model.JobStatusRunning
	job.StartedAt = time.Now()
	defer job.Finish() // duration is set on every exit path

	failed := false
	for i, step := range req.Steps {
		stepCtx := logging.WithStepID(logging.WithJobID(ctx, job.ID), step.StepID())
		res := uc.executeStep(stepCtx, job, req, step)
		job.StepResults = append(job.StepResults, res)

		if res.Status == model.StepStatusCompleted {
			for k, v := range res.OutputData {
				job.SharedState[k] = v
			}
		} else {
			job.RecordError(res.Error)
			failed = true
		}

		// checkpoint after every step, success or failure
		if err := uc.checkpoint(ctx, job, i, step); err != nil {
			job.RecordError(err.Error())
			job.Status = terminalStatus(job, true)
			metrics.IncPipelineJob(req.WorkflowName, string(job.Status))
			return job, err
		}

		if failed {
			log.Warn().Str("step_id", step.StepID()).Str("error", res.Error).Msg("step failed, halting pipeline")
			break
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
	log.Info().
		Str("status", string(job.Status)).
		Int("steps_completed", job.CompletedSteps()).
		Int("steps_total", len(req.Steps)).
		Msg("job finished")
	return job, nil
}

func terminalStatus(job *model.Job, failed bool) model.JobStatus {
	switch {
	case !failed:
		return model.JobStatusCompleted
	case job.CompletedSteps() > 0:
		return model.JobStatusPartial
	default:
		return model.JobStatusFailed
	}
}

// buildStepInput merges the job's initial input, the accumulated shared
// state, and the step-type extraction rules that pick named fields out of
// shared state.
func buildStepInput(initial, shared map[string]any, agentType string) map[string]any {
	input := make(map[string]any, len(initial)+len(shared))
	for k, v := range initial {
		input[k] = v
	}
	for k, v := range shared {
		input[k] = v
	}
	for _, key := range stepInputRules[agentType] {
		if v, ok := shared[key]; ok {
			input[key] = v
		}
	}
	return input
}

// executeStep runs one agent and returns an explicit result; failures are
// values here, never propagated as panics.
func (uc *PipelineUseCase) executeStep(ctx context.Context, job *model.Job, req ports.RunRequest, step model.StepSpec) (res model.AgentExecutionResult) {
	res = model.AgentExecutionResult{StepID: step.StepID(), Status: model.StepStatusRunning}

	statsBefore := uc.llm.Stats()
	start := time.Now()
	defer func() {
		// measured on every path, including failure
		res.ExecutionTime = time.Since(start)
		statsAfter := uc.llm.Stats()
		res.LLMCalls = statsAfter.Calls - statsBefore.Calls
		res.TokensUsed = statsAfter.TokensUsed - statsBefore.TokensUsed
		metrics.ObserveStep(step.AgentType, string(res.Status), int(res.ExecutionTime/time.Millisecond))
	}()

	agent, err := uc.factory.Resolve(step.AgentType)
	if err != nil {
		res.Status = model.StepStatusFailed
		res.Error = err.Error()
		return res
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = uc.stepTimeout
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	input := buildStepInput(req.InitialInput, job.SharedState, step.AgentType)
	output, err := agent.Execute(stepCtx, input)
	if err != nil {
		res.Status = model.StepStatusFailed
		res.Error = err.Error()
		return res
	}
	res.Status = model.StepStatusCompleted
	res.OutputData = output
	return res
}

func (uc *PipelineUseCase) checkpoint(ctx context.Context, job *model.Job, stepIndex int, step model.StepSpec) error {
	state := checkpointState{
		CompletedStepIndex: stepIndex,
		SharedState:        job.SharedState,
	}
	_, err := uc.checkpoints.Save(ctx, job.ID, step.StepID(), state)
	return err
}
