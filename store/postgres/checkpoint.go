package postgres

import (
	"context"
	"fmt"

	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/step"
)

// SaveCheckpoint persists checkpoint data for a job step, replacing any
// previous checkpoint for the same step.
func (s *Store) SaveCheckpoint(ctx context.Context, jobID id.JobID, stepName string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO retouch_checkpoints (id, job_id, step_name, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id, step_name)
		DO UPDATE SET data = EXCLUDED.data, created_at = NOW()`,
		id.NewCheckpointID().String(), jobID.String(), stepName, data,
	)
	if err != nil {
		return fmt.Errorf("retouch/postgres: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves checkpoint data for a job step. Nil data means
// no checkpoint exists.
func (s *Store) GetCheckpoint(ctx context.Context, jobID id.JobID, stepName string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM retouch_checkpoints WHERE job_id = $1 AND step_name = $2`,
		jobID.String(), stepName,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil // no checkpoint is not an error
		}
		return nil, fmt.Errorf("retouch/postgres: get checkpoint: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

// ListCheckpoints returns all checkpoints recorded for a job.
func (s *Store) ListCheckpoints(ctx context.Context, jobID id.JobID) ([]*step.Checkpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, step_name, data, created_at
		FROM retouch_checkpoints
		WHERE job_id = $1
		ORDER BY created_at ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("retouch/postgres: list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*step.Checkpoint
	for rows.Next() {
		var (
			cp       step.Checkpoint
			idStr    string
			jobIDStr string
		)
		if err := rows.Scan(&idStr, &jobIDStr, &cp.StepName, &cp.Data, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("retouch/postgres: scan checkpoint: %w", err)
		}
		cp.ID, _ = id.ParseWithPrefix(idStr, id.PrefixCheckpoint) //nolint:errcheck // best-effort parse from trusted rows
		cp.JobID, _ = id.ParseJobID(jobIDStr)                     //nolint:errcheck // best-effort parse from trusted rows
		checkpoints = append(checkpoints, &cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("retouch/postgres: iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}
