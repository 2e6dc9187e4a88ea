package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/step"
)

// SaveCheckpoint persists checkpoint data for a job step, replacing any
// previous checkpoint for the same step.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID id.JobID, stepName string, data []byte) error {
	jID := jobID.String()
	key := checkpointKey(jID, stepName)
	cpID := id.NewCheckpointID().String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"id", cpID,
		"job_id", jID,
		"step_name", stepName,
		"data", string(data),
		"created_at", time.Now().UTC().Format(time.RFC3339Nano),
	)
	pipe.SAdd(ctx, checkpointIndexKey(jID), stepName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retouch/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a job step. Nil data means
// no checkpoint exists; a completed step with no payload comes back as an
// empty non-nil slice.
func (s *Store) GetCheckpoint(ctx context.Context, jobID id.JobID, stepName string) ([]byte, error) {
	key := checkpointKey(jobID.String(), stepName)
	data, err := s.client.HGet(ctx, key, "data").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil // no checkpoint is not an error
		}
		return nil, fmt.Errorf("retouch/redis: get checkpoint: %w", err)
	}
	return []byte(data), nil
}

// ListCheckpoints returns all checkpoints recorded for a job.
func (s *Store) ListCheckpoints(ctx context.Context, jobID id.JobID) ([]*step.Checkpoint, error) {
	jID := jobID.String()
	steps, err := s.client.SMembers(ctx, checkpointIndexKey(jID)).Result()
	if err != nil {
		return nil, fmt.Errorf("retouch/redis: list checkpoints: %w", err)
	}

	var checkpoints []*step.Checkpoint
	for _, st := range steps {
		vals, getErr := s.client.HGetAll(ctx, checkpointKey(jID, st)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}

		cpID, _ := id.ParseWithPrefix(vals["id"], id.PrefixCheckpoint) //nolint:errcheck // best-effort parse from trusted Redis data
		createdAt, _ := time.Parse(time.RFC3339Nano, vals["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

		checkpoints = append(checkpoints, &step.Checkpoint{
			ID:        cpID,
			JobID:     jobID,
			StepName:  vals["step_name"],
			Data:      []byte(vals["data"]),
			CreatedAt: createdAt,
		})
	}
	return checkpoints, nil
}
