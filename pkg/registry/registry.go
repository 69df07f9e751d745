// Package registry keeps several flows side by side in one process, keyed by
// flow name.
package registry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/flowgraph"
)

// Registry manages the available flows.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]*flowgraph.Flow
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{
		flows: make(map[string]*flowgraph.Flow),
	}
}

// Register adds flows to the registry. Flow names must be unique.
func (r *Registry) Register(flows ...*flowgraph.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range flows {
		if _, dup := r.flows[f.Name]; dup {
			return fmt.Errorf("flow %s is already registered", f.Name)
		}
		r.flows[f.Name] = f
	}
	return nil
}

// MustRegister is Register that panics on duplicates.
func (r *Registry) MustRegister(flows ...*flowgraph.Flow) *Registry {
	if err := r.Register(flows...); err != nil {
		panic(err)
	}
	return r
}

// Get looks up a flow by name.
func (r *Registry) Get(name string) (*flowgraph.Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	return f, ok
}

// Names returns the registered flow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.flows))
}
