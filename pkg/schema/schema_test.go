package schema_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/flowgraph/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	tests := []struct {
		typ     schema.Type
		name    string
		valid   []any
		invalid []any
	}{
		{schema.String(), "string", []any{"", "x"}, []any{1, true}},
		{schema.Int(), "int", []any{1, int64(2), 3.0}, []any{1.5, "1"}},
		{schema.Float(), "float", []any{1, 0.5}, []any{"0.5"}},
		{schema.Bool(), "bool", []any{true}, []any{"true", 1}},
		{schema.Slice(schema.String()), "[string]", []any{[]string{"a"}, []any{"a", "b"}}, []any{"a", []any{"a", 1}}},
		{schema.OneOf("a", "b"), "one of [a b]", []any{"a"}, []any{"c", 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.typ.Name())
			for _, v := range tt.valid {
				assert.NoError(t, tt.typ.Validate(v), "%#v", v)
			}
			for _, v := range tt.invalid {
				assert.Error(t, tt.typ.Validate(v), "%#v", v)
			}
		})
	}
}

func TestCustom(t *testing.T) {
	positive := schema.Custom("positive_int", func(v any) error {
		if i, ok := v.(int); !ok || i <= 0 {
			return errors.New("must be a positive int")
		}
		return nil
	})
	assert.Equal(t, "positive_int", positive.Name())
	assert.NoError(t, positive.Validate(3))
	assert.EqualError(t, positive.Validate(-1), "must be a positive int")
}

func TestValidate(t *testing.T) {
	s := schema.Schema{
		"alpha":  schema.Float(),
		"epochs": schema.Int(),
		"tags":   schema.Slice(schema.String()),
		"name":   schema.String(),
	}

	assert.NoError(t, schema.Validate(s, map[string]any{"alpha": 0.1, "epochs": 3, "name": nil}))

	err := schema.Validate(s, map[string]any{"alpha": "fast", "epochs": 1.5, "tags": []string{"x"}})
	require.Error(t, err)
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], `parameter "alpha": expected float, got string`)
	assert.EqualError(t, errs[1], `parameter "epochs": expected int, got float (not a whole number)`)
	assert.Contains(t, err.Error(), "2 validation errors")

	assert.Nil(t, schema.ValidationErrors(errors.New("other")))
}

func TestValidationErrors_Wrapped(t *testing.T) {
	err := schema.Validate(schema.Schema{"n": schema.Int()}, map[string]any{"n": "x"})
	wrapped := fmt.Errorf("failed to resolve parameters: %w", err)

	require.Len(t, schema.ValidationErrors(wrapped), 1)
	var typeErr *schema.TypeError
	require.ErrorAs(t, wrapped, &typeErr)
	assert.Equal(t, "n", typeErr.Param)
	assert.Equal(t, "x", typeErr.Value)
}
