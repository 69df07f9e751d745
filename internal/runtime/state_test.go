package runtime

import (
	"context"
	"testing"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_ResolutionOrder(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDatastore()
	parent := openStore(t, ds, "a", "1")
	own := openStore(t, ds, "b", "1")
	require.NoError(t, parent.Save(ctx, "x", "parent"))
	require.NoError(t, parent.Save(ctx, "y", "parent"))
	require.NoError(t, own.Save(ctx, "y", "own"))

	s := NewState(own, parent)

	v, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "parent", v)

	v, err = s.Get(ctx, "y")
	require.NoError(t, err)
	assert.Equal(t, "own", v)

	s.Set("x", "local")
	v, err = s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "local", v)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	ok, err := s.Has(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestState_Memoizes(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDatastore()
	parent := openStore(t, ds, "a", "1")
	require.NoError(t, parent.Save(ctx, "x", 1))
	s := NewState(openStore(t, ds, "b", "1"), parent)

	_, err := s.Get(ctx, "x")
	require.NoError(t, err)
	require.NoError(t, parent.Save(ctx, "x", 2))

	v, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, v, "a loaded value is read once per task")
}

func TestState_Assigned(t *testing.T) {
	s := NewState(nil, nil)
	s.Set("b", 1)
	s.Set("a", 2)
	s.Set("b", 3)
	assert.Equal(t, []string{"b", "a"}, s.Assigned())
	assert.True(t, s.IsSet("a"))
	v, ok := s.Local("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	ok, err := s.Has(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForeachValue(t *testing.T) {
	assert.Equal(t, "hello", ForeachValue("hello", 30))
	assert.Equal(t, "3.5", ForeachValue(3.5, 30))
	assert.Equal(t, "true", ForeachValue(true, 30))
	assert.Equal(t, "abc", ForeachValue("abcdef", 3))
	assert.Equal(t, "héllo", ForeachValue("héllo wörld", 5))
	assert.Equal(t, "map[a:1 b:2]", ForeachValue(map[string]int{"b": 2, "a": 1}, 30))
	assert.LessOrEqual(t, len([]rune(ForeachValue(make([]int, 100), 30))), 30)
}
