package model

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusPartial   JobStatus = "partial"
)

type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// AgentExecutionResult records one step of a pipeline run.
// ExecutionTime is always set, including on failure.
type AgentExecutionResult struct {
	StepID        string         `json:"step_id"`
	Status        StepStatus     `json:"status"`
	OutputData    map[string]any `json:"output_data,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	LLMCalls      int64          `json:"llm_calls"`
	TokensUsed    int64          `json:"tokens_used"`
}

// Job is one pipeline run. SharedState and StepResults are owned exclusively
// by the engine for the duration of the run; StepResults is append-only.
type Job struct {
	ID           string                 `json:"job_id"`
	WorkflowName string                 `json:"workflow_name,omitempty"`
	Status       JobStatus              `json:"status"`
	SharedState  map[string]any         `json:"shared_state"`
	StepResults  []AgentExecutionResult `json:"step_results"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      time.Time              `json:"ended_at"`
	Duration     time.Duration          `json:"duration"`
	Error        string                 `json:"error,omitempty"`
}

// RecordError sets the job-level error once; later failures do not overwrite it.
func (j *Job) RecordError(msg string) {
	if j.Error == "" {
		j.Error = msg
	}
}

// CompletedSteps counts results that finished successfully.
func (j *Job) CompletedSteps() int {
	n := 0
	for _, r := range j.StepResults {
		if r.Status == StepStatusCompleted {
			n++
		}
	}
	return n
}

// Finish closes the run: EndedAt and Duration are set exactly once,
// on every exit path from the step loop.
func (j *Job) Finish() {
	j.EndedAt = time.Now()
	j.Duration = j.EndedAt.Sub(j.StartedAt)
}
