// Package retouch provides a durable background job engine for
// prompt-driven image editing. A caller dispatches an edit request
// (image bytes, MIME type, natural-language prompt), receives an opaque
// job identifier, and polls for status until the edited image is ready.
//
// Retouch is a library, not a service. Import it, configure a store and
// an edit backend, and dispatch edits:
//
//	store := memory.New()
//	eng, err := engine.New(store)
//	svc := edit.NewService(eng, backend)
//
//	receipt, err := svc.Dispatch(ctx, edit.DispatchRequest{...})
//	status, err := svc.Status(ctx, receipt.JobID)
//
// # Architecture
//
// The engine follows a store pattern: the job package defines the
// persistence contract, and memory, redis, and postgres backends
// implement it. Worker goroutines poll the store, execute jobs through
// a middleware chain, and record results. Each externally visible effect
// inside a job runs as a checkpointed step, so a platform-level retry of
// a crashed job never repeats an edit call that already succeeded.
//
// All entity IDs are TypeID strings: prefix-qualified, K-sortable, and
// opaque to callers.
package retouch
