// Package retry provides a bounded-attempt executor for transient
// failures, primarily rate-limited calls to an external editing backend.
//
// The executor wraps a single logical operation. It is distinct from the
// platform-level job retries managed by the worker pool: a job attempt may
// internally retry a rate-limited call several times before the step as a
// whole is considered failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/backoff"
)

// DefaultMaxAttempts is the total number of invocations (first try
// included) before a transient error is surfaced to the caller.
const DefaultMaxAttempts = 3

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// DefaultClassifier treats rate-limit errors as transient and everything
// else as fatal.
func DefaultClassifier(err error) bool {
	return errors.Is(err, retouch.ErrRateLimited)
}

// Executor runs operations with bounded retries and backoff between
// attempts. The zero value is not usable; construct with New.
type Executor struct {
	maxAttempts int
	strategy    backoff.Strategy
	classify    Classifier
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the total number of invocations, first try included.
// Values below 1 are clamped to 1.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.maxAttempts = n
	}
}

// WithStrategy sets the backoff strategy used between attempts.
func WithStrategy(s backoff.Strategy) Option {
	return func(e *Executor) { e.strategy = s }
}

// WithClassifier sets the transient-error classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) { e.classify = c }
}

// WithLogger sets the logger used for per-attempt warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// withSleep overrides the delay function. Test hook.
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// New creates an Executor with exponential backoff (1s base) and
// DefaultMaxAttempts unless overridden.
func New(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts: DefaultMaxAttempts,
		strategy:    backoff.NewExponential(time.Second, time.Minute),
		classify:    DefaultClassifier,
		sleep:       sleepCtx,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do invokes op until it succeeds, fails fatally, or attempts are
// exhausted. A fatal (non-transient) error is returned immediately with
// no further attempts and no delay. When attempts run out the last
// transient error is returned wrapped in ErrMaxRetriesExceeded, again
// with no trailing delay.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !e.classify(lastErr) {
			return lastErr
		}
		if attempt == e.maxAttempts {
			break
		}

		delay := e.strategy.Delay(attempt)
		e.logger.WarnContext(ctx, "transient failure, backing off",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.maxAttempts),
			slog.Duration("delay", delay),
			slog.String("error", lastErr.Error()))

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", retouch.ErrMaxRetriesExceeded, e.maxAttempts, lastErr)
}

// DoWithResult is Do for operations that produce a value.
func DoWithResult[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
