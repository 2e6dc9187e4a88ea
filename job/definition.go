package job

import (
	"context"

	"github.com/retouchd/retouch/step"
)

// Definition is a typed job definition with a handler function.
// T is the payload type, R the result type; both must be
// JSON-serializable. The handler receives a step handle so it can
// checkpoint side effects against crash replay.
type Definition[T, R any] struct {
	// Name is the unique identifier for this job type.
	Name string

	// Handler processes the job payload. Its result is persisted on the
	// job record and surfaced to status pollers.
	Handler func(ctx context.Context, s *step.Steps, payload T) (R, error)

	// Opts configures retries, queue, priority, and timeout.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T, R any](name string, handler func(ctx context.Context, s *step.Steps, payload T) (R, error), opts ...Option) *Definition[T, R] {
	def := &Definition[T, R]{
		Name:    name,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
