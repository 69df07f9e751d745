package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrArtifactNotFound is returned when a task datastore has no artifact with the requested name.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrTaskNotFound is returned when a task path cannot be found in the datastore.
var ErrTaskNotFound = errors.New("task not found")

// ErrNoTransition is returned when a non-end step finishes without calling Next.
var ErrNoTransition = errors.New("step finished without a transition")

// InvalidNextKind classifies the ways a next() call can be malformed.
type InvalidNextKind string

const (
	UnknownArgument     InvalidNextKind = "unknown_argument"
	MultipleTransitions InvalidNextKind = "multiple_transitions"
	UnknownStep         InvalidNextKind = "unknown_step"
	NotAStep            InvalidNextKind = "not_a_step"
	ParallelTargets     InvalidNextKind = "parallel_targets"
	InvalidParallel     InvalidNextKind = "invalid_parallel"
	ForeachNotString    InvalidNextKind = "foreach_not_string"
	ForeachTargets      InvalidNextKind = "foreach_targets"
	ForeachMissing      InvalidNextKind = "foreach_missing"
	UnboundedTopology   InvalidNextKind = "unbounded_topology"
	ForeachNotIterable  InvalidNextKind = "foreach_not_iterable"
	ForeachNotStorable  InvalidNextKind = "foreach_not_storable"
	ZeroSplits          InvalidNextKind = "zero_splits"
	NoDestination       InvalidNextKind = "no_destination"
	UndeclaredTarget    InvalidNextKind = "undeclared_target"
)

// InvalidNextError reports a malformed transition declared by a step body.
// These are programmer errors and are never retried.
type InvalidNextError struct {
	Kind InvalidNextKind
	Step string
	// Arg is the offending argument (option key, destination or foreach variable), if any.
	Arg string
	Msg string
}

func (e *InvalidNextError) Error() string {
	return fmt.Sprintf("invalid next() transition in step %q: %s", e.Step, e.Msg)
}

// Is matches any InvalidNextError with the same kind, so callers can compare
// against a template such as &InvalidNextError{Kind: ZeroSplits}.
func (e *InvalidNextError) Is(target error) bool {
	t, ok := target.(*InvalidNextError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Step == "" || t.Step == e.Step)
}

// MergeUsageError is returned when merge is called outside a join or with both include and exclude.
type MergeUsageError struct {
	Step string
	Msg  string
}

func (e *MergeUsageError) Error() string {
	return fmt.Sprintf("merge artifacts in step %q: %s", e.Step, e.Msg)
}

// UnhandledInMergeArtifactsError lists every artifact whose branches disagree.
type UnhandledInMergeArtifactsError struct {
	Step      string
	Artifacts []string
}

func (e *UnhandledInMergeArtifactsError) Error() string {
	return fmt.Sprintf("step %q cannot merge artifacts with conflicting values: [%s]; "+
		"set them explicitly on the task before merging", e.Step, strings.Join(e.Artifacts, ", "))
}

// MissingInMergeArtifactsError lists included artifacts that no branch provides.
type MissingInMergeArtifactsError struct {
	Step    string
	Include []string
	Missing []string
}

func (e *MissingInMergeArtifactsError) Error() string {
	return fmt.Sprintf("step %q includes [%s] in merge but [%s] are not present in any branch",
		e.Step, strings.Join(e.Include, ", "), strings.Join(e.Missing, ", "))
}

// InternalError signals a registration or packaging bug. It is not user recoverable.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Msg
}

// Internalf builds an InternalError.
func Internalf(format string, args ...any) error {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// StepError wraps a failure raised by a step body.
type StepError struct {
	Step string
	Task string
	Err  error
}

func (e *StepError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("step %q (task %s) failed: %v", e.Step, e.Task, e.Err)
	}
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
