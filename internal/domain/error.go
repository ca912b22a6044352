package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNoProviderAvailable = errors.New("no provider available")
	ErrUnknownAgentType    = errors.New("unknown agent type")
	ErrUnknownWorkflow     = errors.New("unknown workflow")
	ErrWorkerQueueFull     = errors.New("worker queue full")
)

// ValidationError rejects a job before any step has run.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "job validation failed: " + e.Reason
}

// ProviderError means every configured provider failed for one generate call.
// Err carries the last attempted provider's failure, not the first.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("all providers failed, last (%s): %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CheckpointError wraps a storage I/O failure during checkpoint save/restore.
// It is never swallowed: a missing checkpoint breaks resumability.
type CheckpointError struct {
	Op    string
	JobID string
	Err   error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }
