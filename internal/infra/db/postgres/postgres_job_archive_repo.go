package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/repository"
)

var _ repository.JobArchive = (*jobArchiveRepo)(nil)

type jobArchiveRepo struct {
	pool *pgxpool.Pool
}

func NewJobArchiveRepo(pool *pgxpool.Pool) *jobArchiveRepo {
	return &jobArchiveRepo{pool: pool}
}

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

func (r *jobArchiveRepo) Save(ctx context.Context, job *model.Job) error {
	sharedState, err := json.Marshal(job.SharedState)
	if err != nil {
		return err
	}
	stepResults, err := json.Marshal(job.StepResults)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO pipeline_jobs (id, workflow_name, status, shared_state, step_results, error, started_at, ended_at, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  shared_state = EXCLUDED.shared_state,
  step_results = EXCLUDED.step_results,
  error = EXCLUDED.error,
  ended_at = EXCLUDED.ended_at,
  duration_ms = EXCLUDED.duration_ms;`

	_, err = r.pool.Exec(ctx, q,
		job.ID, job.WorkflowName, string(job.Status), sharedState, stepResults,
		job.Error, job.StartedAt, job.EndedAt, job.Duration.Milliseconds())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return fmt.Errorf("pipeline_jobs table missing, run migrations: %w", err)
		}
		return err
	}
	return nil
}

func (r *jobArchiveRepo) FindByID(ctx context.Context, jobID string) (*model.Job, error) {
	const q = `
SELECT id, workflow_name, status, shared_state, step_results, error, started_at, ended_at, duration_ms
FROM pipeline_jobs
WHERE id = $1;`

	var (
		job         model.Job
		statusStr   string
		sharedState []byte
		stepResults []byte
		durationMS  int64
	)
	err := r.pool.QueryRow(ctx, q, jobID).Scan(
		&job.ID, &job.WorkflowName, &statusStr, &sharedState, &stepResults,
		&job.Error, &job.StartedAt, &job.EndedAt, &durationMS)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	job.Status = model.JobStatus(statusStr)
	job.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal(sharedState, &job.SharedState); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepResults, &job.StepResults); err != nil {
		return nil, err
	}
	return &job, nil
}
