package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Resolver reads artifacts visible to a task.
type Resolver interface {
	Get(ctx context.Context, name string) (any, error)
}

// ForeachContext answers index, input and stack queries for one task.
// Inputs are resolved lazily and memoized per stack depth.
type ForeachContext struct {
	stack    domain.ForeachStack
	resolver Resolver
	cache    map[int]any
}

// NewForeachContext creates the foreach view of a task.
func NewForeachContext(stack domain.ForeachStack, resolver Resolver) *ForeachContext {
	return &ForeachContext{
		stack:    stack,
		resolver: resolver,
		cache:    make(map[int]any),
	}
}

// CurrentIndex returns the index of the innermost frame. The second result is
// false outside any foreach.
func (f *ForeachContext) CurrentIndex() (int, bool) {
	top, ok := f.stack.Top()
	if !ok {
		return 0, false
	}
	return top.Index, true
}

// CurrentInput returns the element of the innermost frame, or nil outside any foreach.
func (f *ForeachContext) CurrentInput(ctx context.Context) (any, error) {
	if len(f.stack) == 0 {
		return nil, nil
	}
	return f.input(ctx, len(f.stack)-1)
}

// Stack returns one entry per frame, outermost first.
func (f *ForeachContext) Stack(ctx context.Context) ([]domain.StackEntry, error) {
	out := make([]domain.StackEntry, 0, len(f.stack))
	for i, frame := range f.stack {
		v, err := f.input(ctx, i)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.StackEntry{Index: frame.Index, NumSplits: frame.NumSplits, Value: v})
	}
	return out, nil
}

// Frames returns the raw stack.
func (f *ForeachContext) Frames() domain.ForeachStack { return f.stack }

func (f *ForeachContext) input(ctx context.Context, depth int) (any, error) {
	if v, ok := f.cache[depth]; ok {
		return v, nil
	}
	frame := f.stack[depth]
	src, err := f.resolver.Get(ctx, frame.Var)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		// The variable of an enclosing level is not visible here, e.g. at a
		// join of an inner foreach.
		f.cache[depth] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v, err := itemAt(src, frame.Index)
	if err != nil {
		return nil, fmt.Errorf("foreach %q at depth %d: %w", frame.Var, depth, err)
	}
	f.cache[depth] = v
	return v, nil
}
