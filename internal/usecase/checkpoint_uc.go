package usecase

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/repository"
	"ai-agent-pipeline/internal/infra/metrics"
)

// CheckpointManager makes pipeline runs resumable: append-only saves of
// opaque JSON state keyed by job id, with list/restore/delete/cleanup.
// Checkpoint ids are ULIDs, so ids themselves sort by creation time.
type CheckpointManager struct {
	store repository.CheckpointStore
	log   *zerolog.Logger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	locksMu  sync.Mutex
	jobLocks map[string]*sync.Mutex
}

func NewCheckpointManager(store repository.CheckpointStore, logger *zerolog.Logger) *CheckpointManager {
	l := logger.With().Str("component", "CheckpointManager").Logger()
	return &CheckpointManager{
		store:    store,
		log:      &l,
		entropy:  ulid.Monotonic(rand.Reader, 0),
		jobLocks: make(map[string]*sync.Mutex),
	}
}

func (m *CheckpointManager) newID(t time.Time) string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

// jobLock serializes Cleanup against in-flight Saves for the same job id.
func (m *CheckpointManager) jobLock(jobID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	mu, ok := m.jobLocks[jobID]
	if !ok {
		mu = &sync.Mutex{}
		m.jobLocks[jobID] = mu
	}
	return mu
}

// Save persists any JSON-serializable state without inspecting its shape
// and returns the fresh checkpoint id. Storage failures are reported, never
// swallowed: a lost checkpoint breaks the resumability guarantee.
func (m *CheckpointManager) Save(ctx context.Context, jobID, label string, state any) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", &domain.CheckpointError{Op: "save", JobID: jobID, Err: err}
	}
	now := time.Now().UTC()
	cp := &model.Checkpoint{
		ID:        m.newID(now),
		Label:     label,
		State:     raw,
		CreatedAt: now,
	}

	mu := m.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.store.Append(ctx, jobID, cp); err != nil {
		return "", &domain.CheckpointError{Op: "save", JobID: jobID, Err: err}
	}
	metrics.IncCheckpointSave()
	m.log.Debug().Str("job_id", jobID).Str("checkpoint_id", cp.ID).Str("label", label).Msg("checkpoint saved")
	return cp.ID, nil
}

// List returns creation-ordered metadata. Unknown job ids yield an empty
// slice, never an error.
func (m *CheckpointManager) List(ctx context.Context, jobID string) ([]model.CheckpointMeta, error) {
	metas, err := m.store.List(ctx, jobID)
	if err != nil {
		return nil, &domain.CheckpointError{Op: "list", JobID: jobID, Err: err}
	}
	return metas, nil
}

// Restore returns the exact previously saved state; domain.ErrNotFound when
// the id does not exist under that job id.
func (m *CheckpointManager) Restore(ctx context.Context, jobID, checkpointID string) (any, error) {
	cp, err := m.store.Get(ctx, jobID, checkpointID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, &domain.CheckpointError{Op: "restore", JobID: jobID, Err: err}
	}
	var state any
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, &domain.CheckpointError{Op: "restore", JobID: jobID, Err: err}
	}
	return state, nil
}

// Delete is idempotent: removing a non-existent checkpoint is not an error.
func (m *CheckpointManager) Delete(ctx context.Context, jobID, checkpointID string) error {
	mu := m.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	if err := m.store.Delete(ctx, jobID, checkpointID); err != nil {
		return &domain.CheckpointError{Op: "delete", JobID: jobID, Err: err}
	}
	return nil
}

// Cleanup retains the keepLast most recently created checkpoints for the
// job and deletes the rest. Deterministic by creation timestamp, ties
// broken by creation order. Idempotent.
func (m *CheckpointManager) Cleanup(ctx context.Context, jobID string, keepLast int) error {
	if keepLast < 0 {
		keepLast = 0
	}

	mu := m.jobLock(jobID)
	mu.Lock()
	defer mu.Unlock()

	metas, err := m.store.List(ctx, jobID)
	if err != nil {
		return &domain.CheckpointError{Op: "cleanup", JobID: jobID, Err: err}
	}
	if len(metas) <= keepLast {
		return nil
	}

	// store order is creation order; a stable sort on CreatedAt keeps it
	// as the tiebreaker
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})

	drop := metas[:len(metas)-keepLast]
	for _, meta := range drop {
		if err := m.store.Delete(ctx, jobID, meta.ID); err != nil {
			return &domain.CheckpointError{Op: "cleanup", JobID: jobID, Err: err}
		}
	}
	metrics.IncCheckpointCleanup()
	m.log.Info().Str("job_id", jobID).Int("deleted", len(drop)).Int("kept", keepLast).Msg("checkpoints cleaned up")
	return nil
}

// Jobs enumerates job ids that have at least one checkpoint.
func (m *CheckpointManager) Jobs(ctx context.Context) ([]string, error) {
	jobs, err := m.store.Jobs(ctx)
	if err != nil {
		return nil, &domain.CheckpointError{Op: "jobs", JobID: "", Err: err}
	}
	return jobs, nil
}
