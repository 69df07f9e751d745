package flow

import (
	"context"
	"slices"
)

// Mutator rewrites flow or step metadata from resolved configuration.
// Concrete mutators implement FlowMutator or StepMutator.
type Mutator interface {
	DecoratorName() string
	StaticallyDefined() bool
	// InsertedBy is the provenance chain of the mutator itself.
	InsertedBy() []string
}

// FlowMutator is applied once to the whole flow.
type FlowMutator interface {
	Mutator
	PreMutate(ctx context.Context, f *MutableFlow) error
}

// StepMutator is applied once to one step.
type StepMutator interface {
	Mutator
	PreMutate(ctx context.Context, s *MutableStep) error
}

// Bindable mutators remember the flow they were registered on.
type Bindable interface {
	BindFlow(*Spec)
	BoundFlow() *Spec
}

// MutatorBase carries the bookkeeping shared by every mutator. Embed it.
type MutatorBase struct {
	Name     string
	Static   bool
	Inserted []string

	flow *Spec
}

func (m *MutatorBase) DecoratorName() string   { return m.Name }
func (m *MutatorBase) StaticallyDefined() bool { return m.Static }
func (m *MutatorBase) InsertedBy() []string    { return slices.Clone(m.Inserted) }

// BindFlow records the owning flow. The first binding wins.
func (m *MutatorBase) BindFlow(s *Spec) {
	if m.flow == nil {
		m.flow = s
	}
}

func (m *MutatorBase) BoundFlow() *Spec { return m.flow }

// FlowMutatorFunc adapts a function into a statically defined FlowMutator.
type FlowMutatorFunc struct {
	MutatorBase
	Fn func(ctx context.Context, f *MutableFlow) error
}

// NewFlowMutator returns a statically defined flow mutator.
func NewFlowMutator(name string, fn func(ctx context.Context, f *MutableFlow) error) *FlowMutatorFunc {
	return &FlowMutatorFunc{MutatorBase: MutatorBase{Name: name, Static: true}, Fn: fn}
}

func (m *FlowMutatorFunc) PreMutate(ctx context.Context, f *MutableFlow) error {
	return m.Fn(ctx, f)
}

// StepMutatorFunc adapts a function into a statically defined StepMutator.
type StepMutatorFunc struct {
	MutatorBase
	Fn func(ctx context.Context, s *MutableStep) error
}

// NewStepMutator returns a statically defined step mutator.
func NewStepMutator(name string, fn func(ctx context.Context, s *MutableStep) error) *StepMutatorFunc {
	return &StepMutatorFunc{MutatorBase: MutatorBase{Name: name, Static: true}, Fn: fn}
}

func (m *StepMutatorFunc) PreMutate(ctx context.Context, s *MutableStep) error {
	return m.Fn(ctx, s)
}
