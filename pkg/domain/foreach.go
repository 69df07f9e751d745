package domain

import "iter"

// ForeachFrame is one level of dynamic fan-out enclosing a task.
type ForeachFrame struct {
	// Step is the split step that produced this level.
	Step string `json:"step" yaml:"step"`
	// Var is the artifact iterated at this level.
	Var       string `json:"var" yaml:"var"`
	Index     int    `json:"index" yaml:"index"`
	NumSplits int    `json:"num_splits" yaml:"num_splits"`
	// Value is the display string recorded by the split step, if any.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// Unbounded marks levels whose width was resolved at runtime.
	Unbounded bool `json:"unbounded,omitempty" yaml:"unbounded,omitempty"`
}

// ForeachStack is ordered from the outermost to the innermost level.
type ForeachStack []ForeachFrame

// Top returns the innermost frame.
func (s ForeachStack) Top() (ForeachFrame, bool) {
	if len(s) == 0 {
		return ForeachFrame{}, false
	}
	return s[len(s)-1], true
}

// Push returns a copy of the stack with f appended.
func (s ForeachStack) Push(f ForeachFrame) ForeachStack {
	next := make(ForeachStack, len(s), len(s)+1)
	copy(next, s)
	return append(next, f)
}

// Pop returns a copy of the stack without its innermost frame.
func (s ForeachStack) Pop() ForeachStack {
	if len(s) == 0 {
		return nil
	}
	next := make(ForeachStack, len(s)-1)
	copy(next, s[:len(s)-1])
	return next
}

// StackEntry is what step bodies see for one level of the foreach stack.
type StackEntry struct {
	Index     int
	NumSplits int
	Value     any
}

// UnboundedInput is a foreach source indexable by an opaque split identifier.
// Its width is not known when next() is called.
type UnboundedInput interface {
	Item(split *int) any
}

// Sized is implemented by unbounded inputs whose width can be resolved by a scheduler.
type Sized interface {
	NumSplits() int
}

// ParallelUBF is the unbounded input behind num_parallel splits.
// The split index equals the worker rank; the control task (nil rank) is split 0.
type ParallelUBF struct {
	NumParallel int `json:"num_parallel"`
}

func (p ParallelUBF) Item(split *int) any {
	if split == nil {
		return 0
	}
	return *split
}

func (p ParallelUBF) NumSplits() int { return p.NumParallel }

// Indexable values support random access by position.
type Indexable interface {
	Len() int
	At(i int) any
}

// Iterable values can only be walked forward.
type Iterable interface {
	All() iter.Seq[any]
}
