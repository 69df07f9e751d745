package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// State is the artifact namespace of one running task.
//
// Reads resolve in order: values set by the body, the task's own store (merged
// or passed down artifacts), then the parent's store. Loaded values are
// memoized; every miss is an explicit domain.ErrArtifactNotFound.
type State struct {
	own    ports.ArtifactStore
	parent ports.ArtifactStore

	locals map[string]any
	order  []string
	memo   map[string]any
}

// NewState builds the namespace of a task. parent is nil for start and join tasks.
func NewState(own, parent ports.ArtifactStore) *State {
	return &State{
		own:    own,
		parent: parent,
		locals: make(map[string]any),
		memo:   make(map[string]any),
	}
}

// Get resolves an artifact or fails with domain.ErrArtifactNotFound.
func (s *State) Get(ctx context.Context, name string) (any, error) {
	if v, ok := s.locals[name]; ok {
		return v, nil
	}
	if v, ok := s.memo[name]; ok {
		return v, nil
	}
	for _, store := range []ports.ArtifactStore{s.own, s.parent} {
		if store == nil {
			continue
		}
		v, err := store.Load(ctx, name)
		if errors.Is(err, domain.ErrArtifactNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact %q: %w", name, err)
		}
		s.memo[name] = v
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
}

// Has reports whether name resolves, without decoding it.
func (s *State) Has(ctx context.Context, name string) (bool, error) {
	if _, ok := s.locals[name]; ok {
		return true, nil
	}
	if _, ok := s.memo[name]; ok {
		return true, nil
	}
	for _, store := range []ports.ArtifactStore{s.own, s.parent} {
		if store == nil {
			continue
		}
		ok, err := store.Has(ctx, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Set assigns an artifact in the task. Set values shadow every stored value.
func (s *State) Set(name string, value any) {
	if _, ok := s.locals[name]; !ok {
		s.order = append(s.order, name)
	}
	s.locals[name] = value
	delete(s.memo, name)
}

// IsSet reports whether the body assigned name.
func (s *State) IsSet(name string) bool {
	_, ok := s.locals[name]
	return ok
}

// Local returns a value assigned by the body.
func (s *State) Local(name string) (any, bool) {
	v, ok := s.locals[name]
	return v, ok
}

// Assigned lists the names set by the body, in assignment order.
func (s *State) Assigned() []string {
	return slices.Clone(s.order)
}

// Own returns the task's own store.
func (s *State) Own() ports.ArtifactStore { return s.own }

// Parent returns the parent's store, or nil.
func (s *State) Parent() ports.ArtifactStore { return s.parent }
