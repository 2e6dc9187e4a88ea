package job

import (
	"context"
	"time"

	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/step"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by job state. Empty means all states.
	State State
}

// Store defines the persistence contract for jobs and their step
// checkpoints. The checkpoint methods make every Store usable as a
// step.Store.
type Store interface {
	// Migrate prepares the backing schema. Safe to call repeatedly.
	Migrate(ctx context.Context) error

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error

	// EnqueueJob persists a new job in pending state.
	EnqueueJob(ctx context.Context, j *Job) error

	// DequeueJobs atomically claims up to limit pending jobs from the given
	// queues, sets them to running, and returns them. Jobs are ordered by
	// priority (descending) then RunAt (ascending).
	DequeueJobs(ctx context.Context, queues []string, limit int) ([]*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job and its checkpoints by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByState returns jobs matching the given state.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// HeartbeatJob updates the heartbeat timestamp for a running job,
	// indicating the worker is still alive.
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ReapStaleJobs returns running jobs whose last heartbeat is older than
	// the given threshold, indicating the worker may have crashed.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// SaveCheckpoint persists checkpoint data for a job step. An existing
	// checkpoint for the same job/step is replaced.
	SaveCheckpoint(ctx context.Context, jobID id.JobID, stepName string, data []byte) error

	// GetCheckpoint retrieves checkpoint data for a job step.
	// Returns nil data if no checkpoint exists.
	GetCheckpoint(ctx context.Context, jobID id.JobID, stepName string) ([]byte, error)

	// ListCheckpoints returns all checkpoints for a job.
	ListCheckpoints(ctx context.Context, jobID id.JobID) ([]*step.Checkpoint, error)
}
