// Package engine wires the retouch subsystems together. It creates the
// hook registry, job registry, middleware chain, and worker pool, and
// provides Register/Enqueue/Status operations.
//
// This package exists to break the import cycle: the root retouch package
// defines Entity and Config (imported by job, worker, etc.) and so cannot
// import those packages back. The engine package sits above all subsystem
// packages and below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/backoff"
	"github.com/retouchd/retouch/hook"
	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/job"
	mw "github.com/retouchd/retouch/middleware"
	"github.com/retouchd/retouch/worker"
)

// Engine coordinates job registration, dispatch, execution, and status.
type Engine struct {
	cfg      retouch.Config
	hooks    *hook.Registry
	registry *job.Registry
	store    job.Store
	bo       backoff.Strategy
	pool     *worker.Pool
	mws      []mw.Middleware
	logger   *slog.Logger

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithConfig sets the worker pool configuration.
func WithConfig(cfg retouch.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithHook registers a lifecycle hook with the engine.
func WithHook(h hook.Hook) Option {
	return func(eng *Engine) { eng.hooks.Register(h) }
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithBackoff sets the retry backoff strategy for job-level retries.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New creates an Engine backed by the given store.
func New(store job.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, retouch.ErrNoStore
	}

	eng := &Engine{
		cfg:      retouch.DefaultConfig(),
		registry: job.NewRegistry(),
		store:    store,
		logger:   slog.Default(),
	}
	eng.hooks = hook.NewRegistry(eng.logger)

	for _, opt := range opts {
		opt(eng)
	}

	if eng.bo == nil {
		eng.bo = backoff.DefaultStrategy()
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/retouchd/retouch")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/retouchd/retouch")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.hooks, eng.store, eng.bo, eng.logger, allMws...)

	eng.pool = worker.NewPool(
		eng.store,
		executor,
		eng.hooks,
		eng.logger,
		worker.WithPoolConcurrency(eng.cfg.Concurrency),
		worker.WithPoolQueues(eng.cfg.Queues),
		worker.WithPollInterval(eng.cfg.PollInterval),
		worker.WithHeartbeatInterval(eng.cfg.HeartbeatInterval),
		worker.WithStaleJobThreshold(eng.cfg.StaleJobThreshold),
	)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T, R any](eng *Engine, def *job.Definition[T, R]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues a job. Options default to the registered
// definition's options when none are given.
func Enqueue[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for job %q: %w", name, err)
	}

	return eng.EnqueueRaw(ctx, name, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload.
func (eng *Engine) EnqueueRaw(ctx context.Context, name string, payload []byte, opts ...job.Option) (*job.Job, error) {
	now := time.Now().UTC()

	// Start from the registered definition's options, then apply overrides.
	jobOpts, ok := eng.registry.Opts(name)
	if !ok {
		jobOpts = job.DefaultOptions()
	}
	for _, opt := range opts {
		opt(&jobOpts)
	}

	j := &job.Job{
		Entity:     retouch.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Payload:    payload,
		State:      job.StatePending,
		Queue:      jobOpts.Queue,
		Priority:   jobOpts.Priority,
		MaxRetries: jobOpts.MaxRetries,
		Timeout:    jobOpts.Timeout,
		RunAt:      now,
	}
	if !jobOpts.RunAt.IsZero() {
		j.RunAt = jobOpts.RunAt
	}

	if err := eng.store.EnqueueJob(ctx, j); err != nil {
		return nil, fmt.Errorf("%w: %w", retouch.ErrDispatchFailed, err)
	}

	eng.hooks.EmitJobEnqueued(ctx, j)
	return j, nil
}

// GetJob retrieves a job by ID.
func (eng *Engine) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// Cancel cancels a job that has not started running. Running jobs finish
// their current attempt; terminal jobs return ErrInvalidState.
func (eng *Engine) Cancel(ctx context.Context, jobID id.JobID) error {
	j, err := eng.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch j.State {
	case job.StatePending, job.StateRetrying:
		j.State = job.StateCancelled
		if err := eng.store.UpdateJob(ctx, j); err != nil {
			return err
		}
		eng.hooks.EmitJobCancelled(ctx, j)
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel job in state %q", retouch.ErrInvalidState, j.State)
	}
}

// Stats reports per-state job counts for a queue. An empty queue means
// all queues.
type Stats struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Retrying  int64 `json:"retrying"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// Stats returns job counts grouped by state.
func (eng *Engine) Stats(ctx context.Context, queue string) (Stats, error) {
	var s Stats
	counts := []struct {
		state job.State
		dst   *int64
	}{
		{job.StatePending, &s.Pending},
		{job.StateRunning, &s.Running},
		{job.StateRetrying, &s.Retrying},
		{job.StateCompleted, &s.Completed},
		{job.StateFailed, &s.Failed},
		{job.StateCancelled, &s.Cancelled},
	}
	for _, c := range counts {
		n, err := eng.store.CountJobs(ctx, job.CountOpts{Queue: queue, State: c.state})
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	return s, nil
}

// Start begins job processing by starting the worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.pool.Start(ctx)
}

// Stop gracefully shuts down the engine. In-flight jobs get until the
// configured shutdown timeout to finish.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}

	err := eng.pool.Stop(ctx)
	eng.hooks.EmitShutdown(ctx)
	return err
}

// Hooks returns the hook registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Store returns the engine's job store.
func (eng *Engine) Store() job.Store { return eng.store }

// WorkerID returns the worker pool's unique identifier.
func (eng *Engine) WorkerID() id.WorkerID { return eng.pool.WorkerID() }
