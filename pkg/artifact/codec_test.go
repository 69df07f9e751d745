package artifact

import (
	"testing"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_FingerprintIsContentAddressed(t *testing.T) {
	a, err := Encode(map[string]any{"x": 1, "y": "z"})
	require.NoError(t, err)
	b, err := Encode(map[string]any{"y": "z", "x": 1})
	require.NoError(t, err)
	c, err := Encode(2)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint, b.Fingerprint, "map key order does not matter")
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint)
	assert.Len(t, a.Fingerprint, 40)
}

func TestDecode_NormalizesNumbers(t *testing.T) {
	blob, err := Encode([]any{1, 2.5, "s", map[string]any{"n": 7}})
	require.NoError(t, err)

	v, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2.5, "s", map[string]any{"n": 7}}, v)
}

func TestDecode_RegisteredTypeRoundTrips(t *testing.T) {
	blob, err := Encode(domain.ParallelUBF{NumParallel: 4})
	require.NoError(t, err)

	v, err := Decode(blob)
	require.NoError(t, err)
	ubf, ok := v.(domain.ParallelUBF)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, 4, ubf.NumParallel)

	var out domain.ParallelUBF
	require.NoError(t, DecodeInto(blob, &out))
	assert.Equal(t, 4, out.NumParallel)
}

func TestDecode_PlainObjectWithTypeKeyIsNotHijacked(t *testing.T) {
	blob, err := Encode(map[string]any{"@type": "unknown", "value": 1})
	require.NoError(t, err)

	v, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"@type": "unknown", "value": 1}, v)
}
