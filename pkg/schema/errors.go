package schema

import (
	"errors"
	"fmt"
	"strings"
)

// TypeError is a parameter value rejected by its Type.
type TypeError struct {
	Param  string
	Reason string
	Value  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Param, e.Reason)
}

// AggregateError holds every TypeError of one Validate call, ordered by
// parameter name.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err)
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// ValidationErrors unpacks the errors of an AggregateError anywhere in err's
// chain, or returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
