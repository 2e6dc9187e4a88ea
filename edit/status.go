package edit

import "github.com/retouchd/retouch/job"

// Status is the four-valued lifecycle vocabulary exposed to clients.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status change can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StateStatus collapses the engine's job states onto the client vocabulary.
// Queued and scheduled work is pending; started work, including work waiting
// between retry attempts, is processing. Cancellation surfaces as failed
// since clients only distinguish success from non-success. Unrecognized
// states are treated as pending rather than guessed at.
func StateStatus(st job.State) Status {
	switch st {
	case job.StatePending:
		return StatusPending
	case job.StateRunning, job.StateRetrying:
		return StatusProcessing
	case job.StateCompleted:
		return StatusCompleted
	case job.StateFailed, job.StateCancelled:
		return StatusFailed
	default:
		return StatusPending
	}
}
