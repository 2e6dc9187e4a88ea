// Package step provides idempotent, checkpointed execution units inside
// a job handler. A job attempt that crashes part-way is re-executed from
// the top; steps whose checkpoints survived are skipped, so external side
// effects (edit calls, notifications) happen at most once per job.
package step

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	"github.com/retouchd/retouch/id"
)

// Store is the minimal persistence contract steps need. The job store
// satisfies it.
type Store interface {
	// SaveCheckpoint persists checkpoint data for a step. An existing
	// checkpoint for the same job/step is replaced.
	SaveCheckpoint(ctx context.Context, jobID id.JobID, stepName string, data []byte) error

	// GetCheckpoint retrieves checkpoint data for a step. Nil data means
	// no checkpoint exists.
	GetCheckpoint(ctx context.Context, jobID id.JobID, stepName string) ([]byte, error)
}

// Checkpoint records the serialized result of a completed step.
type Checkpoint struct {
	ID        id.CheckpointID `json:"id"`
	JobID     id.JobID        `json:"job_id"`
	StepName  string          `json:"step_name"`
	Data      []byte          `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Steps is the handle a job handler uses to run checkpointed steps. It is
// bound to one job attempt and is not safe for concurrent use.
type Steps struct {
	jobID  id.JobID
	store  Store
	logger *slog.Logger
}

// New binds a Steps handle to a job.
func New(jobID id.JobID, store Store, logger *slog.Logger) *Steps {
	if logger == nil {
		logger = slog.Default()
	}
	return &Steps{jobID: jobID, store: store, logger: logger}
}

// JobID returns the job this handle is bound to.
func (s *Steps) JobID() id.JobID {
	return s.jobID
}

// Run executes a named step once per job. If a checkpoint exists the step
// is skipped. On success an empty checkpoint marks completion.
func (s *Steps) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	data, err := s.store.GetCheckpoint(ctx, s.jobID, name)
	if err != nil {
		return fmt.Errorf("step %q: get checkpoint: %w", name, err)
	}
	if data != nil {
		s.logger.DebugContext(ctx, "skipping checkpointed step",
			slog.String("job_id", s.jobID.String()),
			slog.String("step", name))
		return nil
	}

	if stepErr := fn(ctx); stepErr != nil {
		return fmt.Errorf("step %q: %w", name, stepErr)
	}

	if saveErr := s.store.SaveCheckpoint(ctx, s.jobID, name, []byte{}); saveErr != nil {
		return fmt.Errorf("step %q: save checkpoint: %w", name, saveErr)
	}
	return nil
}

// RunWithResult executes a named step that returns a typed value. The
// result is gob-encoded into the checkpoint; on replay the cached value is
// returned without re-executing fn.
//
// Package-level because Go does not allow generic methods.
func RunWithResult[T any](ctx context.Context, s *Steps, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := s.store.GetCheckpoint(ctx, s.jobID, name)
	if err != nil {
		return zero, fmt.Errorf("step %q: get checkpoint: %w", name, err)
	}
	if data != nil {
		var cached T
		dec := gob.NewDecoder(bytes.NewReader(data))
		if decErr := dec.Decode(&cached); decErr != nil {
			return zero, fmt.Errorf("step %q: decode checkpoint: %w", name, decErr)
		}
		s.logger.DebugContext(ctx, "returning checkpointed result",
			slog.String("job_id", s.jobID.String()),
			slog.String("step", name))
		return cached, nil
	}

	result, stepErr := fn(ctx)
	if stepErr != nil {
		return zero, fmt.Errorf("step %q: %w", name, stepErr)
	}

	var buf bytes.Buffer
	if encErr := gob.NewEncoder(&buf).Encode(result); encErr != nil {
		return zero, fmt.Errorf("step %q: encode checkpoint: %w", name, encErr)
	}
	if saveErr := s.store.SaveCheckpoint(ctx, s.jobID, name, buf.Bytes()); saveErr != nil {
		return zero, fmt.Errorf("step %q: save checkpoint: %w", name, saveErr)
	}
	return result, nil
}

// Sleep pauses the handler for d, once. On replay a checkpointed sleep is
// skipped immediately. Cancellable via ctx.
func (s *Steps) Sleep(ctx context.Context, name string, d time.Duration) error {
	stepName := "sleep:" + name

	data, err := s.store.GetCheckpoint(ctx, s.jobID, stepName)
	if err != nil {
		return fmt.Errorf("step %q: get checkpoint: %w", stepName, err)
	}
	if data != nil {
		s.logger.DebugContext(ctx, "skipping checkpointed sleep",
			slog.String("job_id", s.jobID.String()),
			slog.String("step", name))
		return nil
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.store.SaveCheckpoint(ctx, s.jobID, stepName, []byte{})
}
