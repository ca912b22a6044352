package adapter

import (
	"context"
	"time"
)

// MeshResult is the opaque outcome of a delegated mesh run.
type MeshResult struct {
	Success        bool           `json:"success"`
	ExecutionTime  time.Duration  `json:"execution_time"`
	TotalHops      int            `json:"total_hops"`
	AgentsExecuted []string       `json:"agents_executed"`
	FinalOutput    map[string]any `json:"final_output"`
	ExecutionTrace []string       `json:"execution_trace"`
	Error          string         `json:"error,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MeshExecutor routes an entire workflow through an external
// mesh/circuit-breaker router. Its internals are not modeled here; the
// engine falls back to sequential execution on any error from it.
type MeshExecutor interface {
	ExecuteMeshWorkflow(ctx context.Context, workflowName, initialAgentType string, input map[string]any, jobID string) (*MeshResult, error)
}
