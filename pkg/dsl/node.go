package dsl

import "github.com/aretw0/flowgraph/pkg/flow"

// StepBuilder provides a fluent API for configuring a step.
type StepBuilder struct {
	decl    *flow.StepDecl
	builder *Builder
}

// Go adds unconditional transitions. Several targets declare a static split.
func (s *StepBuilder) Go(targets ...string) *StepBuilder {
	s.decl.Next = append(s.decl.Next, targets...)
	return s
}

// Foreach declares a foreach split over the named artifact.
func (s *StepBuilder) Foreach(variable, target string) *StepBuilder {
	s.decl.Foreach = variable
	s.decl.Next = append(s.decl.Next, target)
	return s
}

// Parallel declares a num_parallel split to target.
func (s *StepBuilder) Parallel(target string) *StepBuilder {
	s.decl.Parallel = true
	s.decl.Next = append(s.decl.Next, target)
	return s
}

// Join marks the step as a join: its body receives every inbound branch.
func (s *StepBuilder) Join() *StepBuilder {
	s.decl.Join = true
	return s
}

// Doc sets the step docstring.
func (s *StepBuilder) Doc(doc string) *StepBuilder {
	s.decl.Doc = doc
	return s
}

// Decorate attaches a statically defined step decorator.
func (s *StepBuilder) Decorate(name string, attrs map[string]any) *StepBuilder {
	s.decl.Decorators = append(s.decl.Decorators, flow.NewDecorator(name, attrs))
	return s
}

// Mutate registers a config-driven step mutator.
func (s *StepBuilder) Mutate(m flow.Mutator) *StepBuilder {
	s.decl.Mutators = append(s.decl.Mutators, m)
	return s
}

// Terminal clears the transitions of the step.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.decl.Next = nil
	return s
}

// Add continues with another step of the same flow.
func (s *StepBuilder) Add(name string) *StepBuilder {
	return s.builder.Add(name)
}

// Decl returns the underlying declaration.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StepBuilder) Decl() *flow.StepDecl {
	return s.decl
}

// Builder returns the flow builder the step belongs to.
func (s *StepBuilder) Builder() *Builder {
	return s.builder
}
