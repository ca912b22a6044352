package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memStore is an in-memory CheckpointStore for tests.
type memStore struct {
	mu   sync.Mutex
	data map[string][]*model.Checkpoint
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]*model.Checkpoint)}
}

func (s *memStore) Append(_ context.Context, jobID string, cp *model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cpy := *cp
	s.data[jobID] = append(s.data[jobID], &cpy)
	return nil
}

func (s *memStore) List(_ context.Context, jobID string) ([]model.CheckpointMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	metas := make([]model.CheckpointMeta, 0, len(s.data[jobID]))
	for _, cp := range s.data[jobID] {
		metas = append(metas, cp.Meta())
	}
	return metas, nil
}

func (s *memStore) Get(_ context.Context, jobID, checkpointID string) (*model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cp := range s.data[jobID] {
		if cp.ID == checkpointID {
			cpy := *cp
			return &cpy, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, jobID, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.data[jobID][:0]
	for _, cp := range s.data[jobID] {
		if cp.ID != checkpointID {
			kept = append(kept, cp)
		}
	}
	if len(kept) == 0 {
		delete(s.data, jobID)
		return nil
	}
	s.data[jobID] = kept
	return nil
}

func (s *memStore) Jobs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]string, 0, len(s.data))
	for id := range s.data {
		jobs = append(jobs, id)
	}
	return jobs, nil
}

// failStore fails every operation.
type failStore struct{}

func (failStore) Append(context.Context, string, *model.Checkpoint) error { return errDisk }
func (failStore) List(context.Context, string) ([]model.CheckpointMeta, error) {
	return nil, errDisk
}
func (failStore) Get(context.Context, string, string) (*model.Checkpoint, error) {
	return nil, errDisk
}
func (failStore) Delete(context.Context, string, string) error { return errDisk }
func (failStore) Jobs(context.Context) ([]string, error)       { return nil, errDisk }

var errDisk = errors.New("disk gone")

func TestCheckpointManager_SaveRestoreRoundTrip(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())
	ctx := context.Background()

	state := map[string]any{
		"completed_step_index": float64(1),
		"shared_state":         map[string]any{"topic": "Go", "n": float64(3)},
	}
	id, err := m.Save(ctx, "job-1", "step-1", state)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatalf("save returned empty id")
	}

	got, err := m.Restore(ctx, "job-1", id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any(state)) {
		t.Fatalf("restore mismatch:\n got %#v\nwant %#v", got, state)
	}
}

func TestCheckpointManager_ListIsCreationOrdered(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := m.Save(ctx, "job-1", "step", map[string]any{"i": i})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	metas, err := m.List(ctx, "job-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 4 {
		t.Fatalf("expected 4 checkpoints, got %d", len(metas))
	}
	for i, meta := range metas {
		if meta.ID != ids[i] {
			t.Fatalf("position %d: got %s want %s", i, meta.ID, ids[i])
		}
		// ULID ids sort lexically by creation time
		if i > 0 && metas[i-1].ID >= meta.ID {
			t.Fatalf("ids not monotonic: %s >= %s", metas[i-1].ID, meta.ID)
		}
	}
}

func TestCheckpointManager_ListUnknownJobIsEmpty(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())

	metas, err := m.List(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("expected empty list, got %d", len(metas))
	}
}

func TestCheckpointManager_RestoreNotFound(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())

	_, err := m.Restore(context.Background(), "job-1", "no-such-id")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointManager_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())
	ctx := context.Background()

	id, err := m.Save(ctx, "job-1", "step", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.Delete(ctx, "job-1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, "job-1", id); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	if _, err := m.Restore(ctx, "job-1", id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestCheckpointManager_CleanupKeepsMostRecent(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())
	ctx := context.Background()

	total, keep := 7, 5
	var ids []string
	for i := 0; i < total; i++ {
		id, err := m.Save(ctx, "job-1", "step", map[string]any{"i": i})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		ids = append(ids, id)
	}

	if err := m.Cleanup(ctx, "job-1", keep); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	metas, err := m.List(ctx, "job-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != keep {
		t.Fatalf("expected %d checkpoints after cleanup, got %d", keep, len(metas))
	}
	for i, meta := range metas {
		want := ids[total-keep+i]
		if meta.ID != want {
			t.Fatalf("position %d: got %s want %s (oldest should go first)", i, meta.ID, want)
		}
	}

	// idempotent
	if err := m.Cleanup(ctx, "job-1", keep); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	metas, _ = m.List(ctx, "job-1")
	if len(metas) != keep {
		t.Fatalf("second cleanup changed count to %d", len(metas))
	}
}

func TestCheckpointManager_CleanupBelowThresholdIsNoop(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(newMemStore(), nopLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Save(ctx, "job-1", "step", map[string]any{"i": i}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := m.Cleanup(ctx, "job-1", 5); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	metas, _ := m.List(ctx, "job-1")
	if len(metas) != 3 {
		t.Fatalf("cleanup below threshold should keep all, got %d", len(metas))
	}
}

func TestCheckpointManager_StoreFailureIsWrapped(t *testing.T) {
	t.Parallel()
	m := NewCheckpointManager(failStore{}, nopLogger())

	_, err := m.Save(context.Background(), "job-1", "step", map[string]any{"x": 1})
	var cpErr *domain.CheckpointError
	if !errors.As(err, &cpErr) {
		t.Fatalf("expected CheckpointError, got %v", err)
	}
	if !errors.Is(err, errDisk) {
		t.Fatalf("wrapped error lost the cause: %v", err)
	}
}
