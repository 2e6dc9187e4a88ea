package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/retouchd/retouch/step"
)

// HandlerFunc is a type-erased job handler. It accepts the raw JSON
// payload and returns the JSON-encoded result. The typed Definition is
// converted to a HandlerFunc at registration time by closing over the
// marshalling and the typed handler.
type HandlerFunc func(ctx context.Context, s *step.Steps, payload []byte) ([]byte, error)

// Registry maps job names to type-erased handler functions along with
// their options. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	handler HandlerFunc
	opts    Options
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// RegisterDefinition registers a typed job definition. The generic handler
// is wrapped in a closure that JSON-unmarshals the payload into T before
// calling the typed handler, and JSON-marshals the R result after.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, s *step.Steps, payload []byte) ([]byte, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job %q: %w", def.Name, err)
			}
		}
		result, err := def.Handler(ctx, s, t)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job %q: %w", def.Name, err)
		}
		return out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[def.Name] = entry{handler: handler, opts: def.Opts}
}

// Get returns the handler for the given job name.
// Returns false if no handler is registered.
func (r *Registry) Get(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.handler, ok
}

// Opts returns the registered options for the given job name.
// Returns false if no definition is registered.
func (r *Registry) Opts(name string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.opts, ok
}

// Names returns all registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
