// Package schema declares the value types a flow parameter accepts.
//
// Built-in types cover strings, ints, floats, bools and slices of them.
// Custom wraps any validation function:
//
//	positive := schema.Custom("positive_int", func(v any) error {
//	    if i, ok := v.(int); !ok || i <= 0 {
//	        return fmt.Errorf("must be a positive int")
//	    }
//	    return nil
//	})
//
// A Schema maps parameter names to types and validates resolved values in one pass.
package schema
