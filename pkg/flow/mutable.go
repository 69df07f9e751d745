package flow

import (
	"slices"
)

// MutableFlow is the view a FlowMutator receives. Decorators added through it
// carry the mutator's provenance.
type MutableFlow struct {
	spec              *Spec
	staticallyDefined bool
	insertedBy        []string
}

// NewMutableFlow builds a view over spec for one mutator invocation.
func NewMutableFlow(spec *Spec, staticallyDefined bool, insertedBy []string) *MutableFlow {
	return &MutableFlow{spec: spec, staticallyDefined: staticallyDefined, insertedBy: slices.Clone(insertedBy)}
}

// Name returns the flow name.
func (f *MutableFlow) Name() string { return f.spec.Name }

// InsertedBy returns the provenance chain recorded on new decorators.
func (f *MutableFlow) InsertedBy() []string { return slices.Clone(f.insertedBy) }

// Config returns a resolved config value.
func (f *MutableFlow) Config(name string) (ConfigValue, bool) { return f.spec.Config(name) }

// Configs returns every resolved config by name.
func (f *MutableFlow) Configs() map[string]ConfigValue {
	out := make(map[string]ConfigValue)
	for _, c := range f.spec.Configs() {
		if v, ok := f.spec.Config(c.Name); ok {
			out[c.Name] = v
		}
	}
	return out
}

// Parameters returns the current parameters.
func (f *MutableFlow) Parameters() []*Parameter { return f.spec.Parameters() }

// AddParameter adds a parameter. An existing parameter with the same name is
// only replaced when overwrite is set.
func (f *MutableFlow) AddParameter(p *Parameter, overwrite bool) bool {
	if f.spec.parameter(p.Name) != nil && !overwrite {
		return false
	}
	f.spec.AddParameter(p)
	return true
}

// RemoveParameter drops a parameter by name.
func (f *MutableFlow) RemoveParameter(name string) bool {
	return f.spec.removeParameter(name)
}

// Decorators returns the flow decorators.
func (f *MutableFlow) Decorators() []*Decorator { return f.spec.Decorators() }

// AddDecorator attaches a flow decorator on behalf of the mutator.
func (f *MutableFlow) AddDecorator(name string, attrs map[string]any, policy DuplicatePolicy) error {
	d := &Decorator{
		Name:              name,
		Attributes:        attrs,
		StaticallyDefined: f.staticallyDefined,
		InsertedBy:        slices.Clone(f.insertedBy),
	}
	var err error
	f.spec.decorators, err = addDecorator(f.spec.decorators, d, policy, "flow "+f.spec.Name)
	return err
}

// RemoveDecorator removes every flow decorator with the given name.
func (f *MutableFlow) RemoveDecorator(name string) bool {
	var removed bool
	f.spec.decorators, removed = removeDecorator(f.spec.decorators, name)
	return removed
}

// Steps returns a view over every step, in declaration order.
func (f *MutableFlow) Steps() []*MutableStep {
	steps := f.spec.Steps()
	out := make([]*MutableStep, len(steps))
	for i, st := range steps {
		out[i] = NewMutableStep(f.spec, st, f.staticallyDefined, f.insertedBy)
	}
	return out
}

// Step returns a view over one step.
func (f *MutableFlow) Step(name string) (*MutableStep, bool) {
	st, ok := f.spec.Step(name)
	if !ok {
		return nil, false
	}
	return NewMutableStep(f.spec, st, f.staticallyDefined, f.insertedBy), true
}

// MutableStep is the view a StepMutator receives, scoped to exactly one step.
type MutableStep struct {
	spec              *Spec
	step              *StepDecl
	staticallyDefined bool
	insertedBy        []string
}

// NewMutableStep builds a view over one step for one mutator invocation.
func NewMutableStep(spec *Spec, step *StepDecl, staticallyDefined bool, insertedBy []string) *MutableStep {
	return &MutableStep{spec: spec, step: step, staticallyDefined: staticallyDefined, insertedBy: slices.Clone(insertedBy)}
}

// Name returns the step name.
func (s *MutableStep) Name() string { return s.step.Name }

// FlowName returns the owning flow name.
func (s *MutableStep) FlowName() string { return s.spec.Name }

// InsertedBy returns the provenance chain recorded on new decorators.
func (s *MutableStep) InsertedBy() []string { return slices.Clone(s.insertedBy) }

// Config returns a resolved config value of the flow.
func (s *MutableStep) Config(name string) (ConfigValue, bool) { return s.spec.Config(name) }

// Decorators returns the step decorators.
func (s *MutableStep) Decorators() []*Decorator { return slices.Clone(s.step.Decorators) }

// AddDecorator attaches a step decorator on behalf of the mutator.
func (s *MutableStep) AddDecorator(name string, attrs map[string]any, policy DuplicatePolicy) error {
	d := &Decorator{
		Name:              name,
		Attributes:        attrs,
		StaticallyDefined: s.staticallyDefined,
		InsertedBy:        slices.Clone(s.insertedBy),
	}
	var err error
	s.step.Decorators, err = addDecorator(s.step.Decorators, d, policy, "step "+s.step.Name)
	return err
}

// RemoveDecorator removes every decorator with the given name from the step.
func (s *MutableStep) RemoveDecorator(name string) bool {
	var removed bool
	s.step.Decorators, removed = removeDecorator(s.step.Decorators, name)
	return removed
}
