// Package dispatch routes request method names to registered handlers.
// Handlers are registered explicitly at startup; there is no reflection or
// dynamic discovery.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/errors"
	"github.com/eyjolfurgudnivatne/mcp.gateway-sub003/session"
)

// Handler processes one request method. The session is nil for methods that
// run before a session exists (e.g. initialize); handlers that require one
// must return ErrSessionRequired.
type Handler func(ctx context.Context, sess *session.Session, params json.RawMessage) (any, error)

// Registry is the method lookup table. Registration happens at startup;
// lookups are concurrent and lock-free after that in practice, but the map
// is still guarded for safety.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty method registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a method name. Registering the same name twice
// is a configuration error.
func (r *Registry) Register(method string, handler Handler) error {
	if method == "" {
		return errors.WrapInvalid(errors.ErrInvalidParams, "Registry", "Register",
			"method name cannot be empty")
	}
	if handler == nil {
		return errors.WrapInvalid(errors.ErrInvalidParams, "Registry", "Register",
			fmt.Sprintf("nil handler for method %s", method))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[method]; exists {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register",
			fmt.Sprintf("method %s already registered", method))
	}
	r.handlers[method] = handler
	return nil
}

// Dispatch looks up and invokes the handler for method. An unknown method
// fails with ErrMethodNotFound.
func (r *Registry) Dispatch(ctx context.Context, method string, sess *session.Session, params json.RawMessage) (any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[method]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.WrapInvalid(errors.ErrMethodNotFound, "Registry", "Dispatch",
			fmt.Sprintf("no handler for method %s", method))
	}

	return handler(ctx, sess, params)
}

// Methods returns the registered method names, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.handlers))
	for method := range r.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
