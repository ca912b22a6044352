package repository

import (
	"context"

	"ai-agent-pipeline/internal/domain/model"
)

// CheckpointStore persists checkpoint records per job id. Records are
// appended, never mutated in place; Delete may rewrite the store.
type CheckpointStore interface {
	Append(ctx context.Context, jobID string, cp *model.Checkpoint) error

	// List returns metadata in creation order. Unknown job ids return an
	// empty slice, never an error.
	List(ctx context.Context, jobID string) ([]model.CheckpointMeta, error)

	// Get returns domain.ErrNotFound when the id does not exist under jobID.
	Get(ctx context.Context, jobID, checkpointID string) (*model.Checkpoint, error)

	// Delete is idempotent: removing a non-existent id is not an error.
	Delete(ctx context.Context, jobID, checkpointID string) error

	// Jobs enumerates job ids with at least one stored checkpoint.
	Jobs(ctx context.Context) ([]string, error)
}
