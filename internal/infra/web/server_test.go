package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/usecase"
)

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memStore is a minimal in-memory checkpoint store for handler tests.
type memStore struct {
	data map[string][]*model.Checkpoint
}

func (s *memStore) Append(_ context.Context, jobID string, cp *model.Checkpoint) error {
	s.data[jobID] = append(s.data[jobID], cp)
	return nil
}

func (s *memStore) List(_ context.Context, jobID string) ([]model.CheckpointMeta, error) {
	metas := make([]model.CheckpointMeta, 0, len(s.data[jobID]))
	for _, cp := range s.data[jobID] {
		metas = append(metas, cp.Meta())
	}
	return metas, nil
}

func (s *memStore) Get(_ context.Context, jobID, id string) (*model.Checkpoint, error) {
	for _, cp := range s.data[jobID] {
		if cp.ID == id {
			return cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) Delete(_ context.Context, jobID, id string) error {
	kept := s.data[jobID][:0]
	for _, cp := range s.data[jobID] {
		if cp.ID != id {
			kept = append(kept, cp)
		}
	}
	s.data[jobID] = kept
	return nil
}

func (s *memStore) Jobs(_ context.Context) ([]string, error) {
	jobs := make([]string, 0, len(s.data))
	for id := range s.data {
		jobs = append(jobs, id)
	}
	return jobs, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *usecase.CheckpointManager) {
	t.Helper()
	manager := usecase.NewCheckpointManager(&memStore{data: map[string][]*model.Checkpoint{}}, nopLogger())
	srv := httptest.NewServer(NewServer(manager, nil, "secret", nopLogger()).Router())
	t.Cleanup(srv.Close)
	return srv, manager
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func TestHealthzIsPublic(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/healthz", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/jobs", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/api/v1/jobs", "wrong")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong token: %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/api/v1/jobs", "secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: %d", resp.StatusCode)
	}
}

func TestListCheckpointsEndpoint(t *testing.T) {
	t.Parallel()
	srv, manager := newTestServer(t)

	if _, err := manager.Save(context.Background(), "job-1", "step-1", map[string]any{"x": 1}); err != nil {
		t.Fatalf("save: %v", err)
	}

	resp := get(t, srv.URL+"/api/v1/jobs/job-1/checkpoints", "secret")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var metas []model.CheckpointMeta
	if err := json.NewDecoder(resp.Body).Decode(&metas); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(metas) != 1 || metas[0].Label != "step-1" {
		t.Fatalf("unexpected payload: %#v", metas)
	}
	if time.Since(metas[0].CreatedAt) > time.Minute {
		t.Fatalf("created_at not serialized: %v", metas[0].CreatedAt)
	}
}

func TestDeleteCheckpointEndpoint(t *testing.T) {
	t.Parallel()
	srv, manager := newTestServer(t)

	id, err := manager.Save(context.Background(), "job-1", "step-1", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/jobs/job-1/checkpoints/"+id, nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}

	metas, _ := manager.List(context.Background(), "job-1")
	if len(metas) != 0 {
		t.Fatalf("checkpoint not deleted")
	}
}

func TestGetJobWithoutArchive(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL+"/api/v1/jobs/job-1", "secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501 without an archive, got %d", resp.StatusCode)
	}
}
