package runtime

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	values map[string]any
	calls  map[string]int
}

func (r *countingResolver) Get(_ context.Context, name string) (any, error) {
	r.calls[name]++
	v, ok := r.values[name]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return v, nil
}

func newResolver(values map[string]any) *countingResolver {
	return &countingResolver{values: values, calls: map[string]int{}}
}

type letters []string

func (l letters) Len() int     { return len(l) }
func (l letters) At(i int) any { return l[i] }

type stream struct{ items []any }

func (s stream) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, it := range s.items {
			if !yield(it) {
				return
			}
		}
	}
}

func TestForeachContext_NestedStack(t *testing.T) {
	r := newResolver(map[string]any{
		"split_1": []any{"a", "b", "c"},
		"split_2": letters{"d", "e", "f", "g"},
		"split_3": stream{items: []any{10, 20}},
	})
	stack := domain.ForeachStack{
		{Step: "root", Var: "split_1", Index: 1, NumSplits: 3},
		{Step: "nest_1", Var: "split_2", Index: 3, NumSplits: 4},
		{Step: "nest_2", Var: "split_3", Index: 1, NumSplits: 2},
	}
	fc := NewForeachContext(stack, r)
	ctx := context.Background()

	entries, err := fc.Stack(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.StackEntry{
		{Index: 1, NumSplits: 3, Value: "b"},
		{Index: 3, NumSplits: 4, Value: "g"},
		{Index: 1, NumSplits: 2, Value: 20},
	}, entries)

	idx, ok := fc.CurrentIndex()
	require.True(t, ok)
	in, err := fc.CurrentInput(ctx)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, last.Index, idx)
	assert.Equal(t, last.Value, in)
}

func TestForeachContext_Memoized(t *testing.T) {
	r := newResolver(map[string]any{"xs": []any{1, 2}})
	fc := NewForeachContext(domain.ForeachStack{{Var: "xs", Index: 0, NumSplits: 2}}, r)

	for range 3 {
		in, err := fc.CurrentInput(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, in)
	}
	_, err := fc.Stack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls["xs"])
}

func TestForeachContext_MissingVariableIsNoValue(t *testing.T) {
	r := newResolver(map[string]any{"inner": []any{"x"}})
	fc := NewForeachContext(domain.ForeachStack{
		{Var: "outer", Index: 0, NumSplits: 1},
		{Var: "inner", Index: 0, NumSplits: 1},
	}, r)

	entries, err := fc.Stack(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entries[0].Value)
	assert.Equal(t, "x", entries[1].Value)

	_, err = fc.Stack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls["outer"], "no value is cached too")
}

func TestForeachContext_OutsideForeach(t *testing.T) {
	fc := NewForeachContext(nil, newResolver(nil))
	_, ok := fc.CurrentIndex()
	assert.False(t, ok)
	in, err := fc.CurrentInput(context.Background())
	require.NoError(t, err)
	assert.Nil(t, in)
	entries, err := fc.Stack(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestForeachContext_UnboundedInput(t *testing.T) {
	r := newResolver(map[string]any{domain.ArtifactParallelUBFIter: domain.ParallelUBF{NumParallel: 4}})
	fc := NewForeachContext(domain.ForeachStack{{Var: domain.ArtifactParallelUBFIter, Index: 2, NumSplits: 4}}, r)
	in, err := fc.CurrentInput(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, in)
}

func TestForeachContext_ResolverFailure(t *testing.T) {
	boom := errors.New("store down")
	fc := NewForeachContext(domain.ForeachStack{{Var: "xs"}}, resolverFunc(func(context.Context, string) (any, error) {
		return nil, boom
	}))
	_, err := fc.CurrentInput(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestForeachContext_IndexOutOfRange(t *testing.T) {
	r := newResolver(map[string]any{"xs": stream{items: []any{1}}})
	fc := NewForeachContext(domain.ForeachStack{{Var: "xs", Index: 5, NumSplits: 6}}, r)
	_, err := fc.CurrentInput(context.Background())
	assert.ErrorContains(t, err, "out of range")
}

type resolverFunc func(context.Context, string) (any, error)

func (f resolverFunc) Get(ctx context.Context, name string) (any, error) { return f(ctx, name) }
