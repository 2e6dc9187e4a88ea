// Package engine wires the retouch subsystems together and provides the
// primary application-level API for registering and enqueuing work.
//
// The engine package exists to break a fundamental import cycle: the root
// retouch package defines Entity and Config (imported by job, worker,
// etc.) and therefore cannot import those packages back. Engine sits above
// all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(store,
//	    engine.WithConfig(retouch.Config{Concurrency: 8, Queues: []string{"edits"}}),
//	    engine.WithHook(myHook),
//	    engine.WithMiddleware(middleware.Logging(logger)),
//	    engine.WithBackoff(backoff.NewExponential(time.Second, time.Minute)),
//	)
//
// # Registering and Enqueuing Work
//
//	engine.Register(eng, ApplyEdit)
//	j, err := engine.Enqueue(ctx, eng, "apply_edit", EditInput{...})
//
// # Status and Control
//
//	j, err := eng.GetJob(ctx, jobID)
//	err = eng.Cancel(ctx, jobID)
//	stats, err := eng.Stats(ctx, "edits")
//
// # Options
//
//   - [WithConfig] set worker pool concurrency, queues, and intervals
//   - [WithHook] register a lifecycle hook
//   - [WithMiddleware] add a middleware to the execution chain
//   - [WithBackoff] set the job-level retry backoff strategy
//   - [WithLogger] set the engine logger
//   - [WithTracerProvider] / [WithMeterProvider] OpenTelemetry providers
package engine
