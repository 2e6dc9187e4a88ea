// Package job defines the job entity, state machine, typed definitions,
// and store interface.
//
// # Job Entity
//
// A [Job] represents a unit of background work, typically one image edit.
// It embeds [retouch.Entity] for timestamps, carries a JSON payload and
// result, and progresses through a state machine:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed
//	pending → cancelled
//
// Fields of note:
//   - Queue: which queue the job belongs to (default: "default")
//   - Priority: higher values are dequeued first
//   - MaxRetries / RetryCount: platform-level re-execution budget
//   - Result: JSON result surfaced to status pollers
//   - RunAt: earliest time the job may be dequeued
//   - Timeout: per-job execution deadline (zero = unlimited)
//
// # Defining a Job
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs; the handler's
// result is serialized back onto the job. The step handle lets handlers
// checkpoint external side effects:
//
//	var ApplyEdit = job.NewDefinition("apply_edit",
//	    func(ctx context.Context, s *step.Steps, input EditInput) (EditOutput, error) {
//	        return step.RunWithResult(ctx, s, "edit", func(ctx context.Context) (EditOutput, error) {
//	            return backend.Edit(ctx, input.Params())
//	        })
//	    },
//	)
//
// # Registry
//
// [Registry] maps job names to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]; the engine
// package provides a higher-level engine.Register wrapper.
package job
