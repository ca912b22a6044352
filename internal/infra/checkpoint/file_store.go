package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/repository"
)

var _ repository.CheckpointStore = (*FileStore)(nil)

// FileStore keeps one append-only JSONL file per job id. Appends add one
// line; Delete rewrites the file via a temp file and rename.
type FileStore struct {
	dir string
	mu  sync.Mutex
	log *zerolog.Logger
}

func NewFileStore(dir string, logger *zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint dir: %w", err)
	}
	l := logger.With().Str("component", "CheckpointFileStore").Logger()
	return &FileStore{dir: dir, log: &l}, nil
}

func (s *FileStore) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".jsonl")
}

func (s *FileStore) Append(ctx context.Context, jobID string, cp *model.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(jobID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = f.Write(line)
	return err
}

func (s *FileStore) readAll(jobID string) ([]model.Checkpoint, error) {
	f, err := os.Open(s.path(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []model.Checkpoint
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var cp model.Checkpoint
		if err := json.Unmarshal(sc.Bytes(), &cp); err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID).Msg("skipping corrupt checkpoint line")
			continue
		}
		out = append(out, cp)
	}
	return out, sc.Err()
}

func (s *FileStore) List(ctx context.Context, jobID string) ([]model.CheckpointMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps, err := s.readAll(jobID)
	if err != nil {
		return nil, err
	}
	metas := make([]model.CheckpointMeta, 0, len(cps))
	for i := range cps {
		metas = append(metas, cps[i].Meta())
	}
	return metas, nil
}

func (s *FileStore) Get(ctx context.Context, jobID, checkpointID string) (*model.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps, err := s.readAll(jobID)
	if err != nil {
		return nil, err
	}
	for i := range cps {
		if cps[i].ID == checkpointID {
			return &cps[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *FileStore) Delete(ctx context.Context, jobID, checkpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps, err := s.readAll(jobID)
	if err != nil {
		return err
	}
	kept := cps[:0]
	found := false
	for i := range cps {
		if cps[i].ID == checkpointID {
			found = true
			continue
		}
		kept = append(kept, cps[i])
	}
	if !found {
		return nil // idempotent
	}
	if len(kept) == 0 {
		err := os.Remove(s.path(jobID))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return s.rewrite(jobID, kept)
}

func (s *FileStore) rewrite(jobID string, cps []model.Checkpoint) error {
	tmp := s.path(jobID) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i := range cps {
		line, err := json.Marshal(&cps[i])
		if err != nil {
			f.Close()
			return err
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(jobID))
}

func (s *FileStore) Jobs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var jobs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		jobs = append(jobs, strings.TrimSuffix(name, ".jsonl"))
	}
	return jobs, nil
}
