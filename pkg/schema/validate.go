package schema

import (
	"maps"
	"slices"
)

// Schema is a map of parameter names to their expected types.
// Example: {"alpha": Float(), "tags": Slice(String())}
type Schema map[string]Type

// Validate checks the values present in data. Absent or nil values are left to
// the required-ness checks of the caller. All failures are reported together,
// ordered by name.
func Validate(schema Schema, data map[string]any) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(schema)) {
		value, ok := data[name]
		if !ok || value == nil {
			continue
		}
		if err := schema[name].Validate(value); err != nil {
			errs = append(errs, &TypeError{
				Param:  name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
