package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// Registry maps provider names from routing decisions to dispatchers.
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[string]Dispatcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[string]Dispatcher)}
}

// Register adds or replaces the dispatcher for a provider name.
func (r *Registry) Register(provider string, d Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[provider] = d
}

// Get returns the dispatcher for a provider name.
func (r *Registry) Get(provider string) (Dispatcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dispatchers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return d, nil
}

// Dispatch resolves the provider and forwards the request.
func (r *Registry) Dispatch(ctx context.Context, req Request) (*Result, error) {
	d, err := r.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	return d.Dispatch(ctx, req)
}
