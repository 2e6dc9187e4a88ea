package edit

import "time"

// Config holds the tunables of the edit pipeline. The defaults mirror the
// production behavior; tests shrink the delays.
type Config struct {
	// MaxAttempts bounds backend calls per step, including the first try.
	MaxAttempts int
	// BackoffBase is the first retry delay; subsequent delays double.
	BackoffBase time.Duration
	// SettleDelay is waited after a successful edit before the job
	// completes, so status propagation has caught up by the next poll.
	SettleDelay time.Duration
	// PollInterval is the suggested client status-poll interval.
	PollInterval time.Duration
	// EstimatedSeconds is returned on dispatch as a completion hint.
	EstimatedSeconds int
	// MaxRetries is the platform-level retry budget for the whole job.
	MaxRetries int
	// Queue is the queue edit jobs are enqueued on.
	Queue string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		BackoffBase:      time.Second,
		SettleDelay:      time.Second,
		PollInterval:     5 * time.Second,
		EstimatedSeconds: 30,
		MaxRetries:       3,
		Queue:            "default",
	}
}
