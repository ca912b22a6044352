package checkpoint

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"ai-agent-pipeline/internal/domain"
	"ai-agent-pipeline/internal/domain/model"
	"ai-agent-pipeline/internal/domain/ports/repository"
	red "ai-agent-pipeline/internal/infra/redis"
)

var _ repository.CheckpointStore = (*RedisStore)(nil)

const (
	redisListPrefix = "checkpoints:"
	redisJobSetKey  = "checkpoint_jobs"
)

// RedisStore is the alternate checkpoint backend: one Redis list per job id,
// records appended as JSON, plus a set of known job ids for enumeration.
type RedisStore struct {
	client red.RedisClient
	log    *zerolog.Logger
}

func NewRedisStore(client red.RedisClient, logger *zerolog.Logger) *RedisStore {
	l := logger.With().Str("component", "CheckpointRedisStore").Logger()
	return &RedisStore{client: client, log: &l}
}

func (s *RedisStore) Append(ctx context.Context, jobID string, cp *model.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	if err := s.client.RPush(ctx, redisListPrefix+jobID, data); err != nil {
		return err
	}
	return s.client.SAdd(ctx, redisJobSetKey, jobID)
}

func (s *RedisStore) readAll(ctx context.Context, jobID string) ([]model.Checkpoint, error) {
	lines, err := s.client.LRange(ctx, redisListPrefix+jobID, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]model.Checkpoint, 0, len(lines))
	for _, line := range lines {
		var cp model.Checkpoint
		if err := json.Unmarshal([]byte(line), &cp); err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID).Msg("skipping corrupt checkpoint record")
			continue
		}
		out = append(out, cp)
	}
	return out, nil
}

func (s *RedisStore) List(ctx context.Context, jobID string) ([]model.CheckpointMeta, error) {
	cps, err := s.readAll(ctx, jobID)
	if err != nil {
		return nil, err
	}
	metas := make([]model.CheckpointMeta, 0, len(cps))
	for i := range cps {
		metas = append(metas, cps[i].Meta())
	}
	return metas, nil
}

func (s *RedisStore) Get(ctx context.Context, jobID, checkpointID string) (*model.Checkpoint, error) {
	cps, err := s.readAll(ctx, jobID)
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

func (s *RedisStore) Delete(ctx context.Context, jobID, checkpointID string) error {
	cps, err := s.readAll(ctx, jobID)
	if err != nil {
		return err
	}
	kept := make([]model.Checkpoint, 0, len(cps))
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

	key := redisListPrefix + jobID
	if err := s.client.Del(ctx, key); err != nil {
		return err
	}
	if len(kept) == 0 {
		return s.client.SRem(ctx, redisJobSetKey, jobID)
	}
	values := make([]interface{}, 0, len(kept))
	for i := range kept {
		data, err := json.Marshal(&kept[i])
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	return s.client.RPush(ctx, key, values...)
}

func (s *RedisStore) Jobs(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, redisJobSetKey)
}
