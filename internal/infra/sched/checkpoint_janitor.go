package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/usecase"
)

// CheckpointJanitor periodically trims each job's checkpoints down to the
// configured keep_last via the checkpoint manager.
type CheckpointJanitor struct {
	interval time.Duration
	keepLast int
	manager  *usecase.CheckpointManager
	log      *zerolog.Logger
}

func NewCheckpointJanitor(interval time.Duration, keepLast int, manager *usecase.CheckpointManager, logger *zerolog.Logger) *CheckpointJanitor {
	l := logger.With().Str("component", "CheckpointJanitor").Logger()
	return &CheckpointJanitor{
		interval: interval,
		keepLast: keepLast,
		manager:  manager,
		log:      &l,
	}
}

func (w *CheckpointJanitor) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Int("keep_last", w.keepLast).Msg("Starting checkpoint janitor")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping checkpoint janitor")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *CheckpointJanitor) sweep(ctx context.Context) {
	jobs, err := w.manager.Jobs(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("janitor could not enumerate jobs")
		return
	}
	for _, jobID := range jobs {
		if err := w.manager.Cleanup(ctx, jobID, w.keepLast); err != nil {
			w.log.Error().Err(err).Str("job_id", jobID).Msg("janitor cleanup error")
		}
	}
}
