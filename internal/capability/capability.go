// Package capability defines the contract between the orchestration engine
// and the operations it executes. The engine treats every capability as
// opaque: a name, a bag of arguments, and a synchronous Execute call that
// either returns output or an error.
package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Result is what a capability hands back on success.
type Result struct {
	Output   string
	Metadata map[string]any
}

// Handler executes one capability invocation. Implementations must honor
// ctx cancellation at their I/O suspension points, and must be safe to
// re-invoke if they want to be retryable.
type Handler interface {
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (Result, error)

func (f HandlerFunc) Execute(ctx context.Context, args map[string]any) (Result, error) {
	return f(ctx, args)
}

// Registry maps capability names to handlers. It is constructor-injected
// into the engine rather than process-global, so independent runs and tests
// can use independent registries.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a name. Returns an error if the name is
// already taken; the registry is closed in the sense that a name resolves to
// exactly one handler for the lifetime of a run.
func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Lookup resolves a capability name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered capability names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
