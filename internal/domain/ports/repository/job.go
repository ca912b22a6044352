package repository

import (
	"context"

	"ai-agent-pipeline/internal/domain/model"
)

// JobArchive persists terminal job records so a run's outcome survives the
// process. Save upserts by job id.
type JobArchive interface {
	Save(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, jobID string) (*model.Job, error)
}
