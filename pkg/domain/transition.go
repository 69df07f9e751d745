package domain

// ForeachSource tags how a foreach transition obtains its splits.
// It is resolved once while validating next() and carried with the transition.
type ForeachSource int

const (
	// SourceNone means the transition is not a foreach.
	SourceNone ForeachSource = iota
	// SourceBounded is a finite iterable consumed eagerly to count splits.
	SourceBounded
	// SourceUnbounded is an UnboundedInput; the split count is resolved at runtime.
	SourceUnbounded
)

func (s ForeachSource) String() string {
	switch s {
	case SourceBounded:
		return "bounded"
	case SourceUnbounded:
		return "unbounded"
	default:
		return "none"
	}
}

// Transition is the validated result of one next() call.
type Transition struct {
	Destinations []string `json:"destinations" yaml:"destinations"`

	// Foreach is the artifact iterated by a foreach transition (empty otherwise).
	Foreach string        `json:"foreach,omitempty" yaml:"foreach,omitempty"`
	Source  ForeachSource `json:"source,omitempty" yaml:"source,omitempty"`

	// NumSplits is set for bounded foreach transitions and parallel splits.
	NumSplits int `json:"num_splits,omitempty" yaml:"num_splits,omitempty"`
	// Values holds display strings for each split when stack tracking is enabled.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	// NumParallel is the requested width of a parallel split.
	NumParallel int `json:"num_parallel,omitempty" yaml:"num_parallel,omitempty"`
}

// IsForeach reports whether the transition fans out dynamically.
func (t Transition) IsForeach() bool {
	return t.Source != SourceNone
}

// Unbounded reports whether the split count is deferred to runtime.
func (t Transition) Unbounded() bool {
	return t.Source == SourceUnbounded
}
