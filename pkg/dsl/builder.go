package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/flowgraph/pkg/flow"
)

// Builder manages the flow construction. Steps keep their declaration order.
type Builder struct {
	name   string
	doc    string
	file   string
	order  []string
	steps  map[string]*StepBuilder
	params []*flow.Parameter
	cfgs   []*flow.Config
	decos  []*flow.Decorator
	muts   []flow.Mutator
	consts []flow.Constant
	bases  []*flow.Spec
}

// New creates a new flow builder.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		steps: make(map[string]*StepBuilder),
	}
}

// Add creates a new step in the flow.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(name string) *StepBuilder {
	if sb, ok := b.steps[name]; ok {
		return sb
	}
	sb := &StepBuilder{
		decl:    &flow.StepDecl{Name: name},
		builder: b,
	}
	b.steps[name] = sb
	b.order = append(b.order, name)
	return sb
}

// Doc sets the flow docstring.
func (b *Builder) Doc(doc string) *Builder {
	b.doc = doc
	return b
}

// File records the program declaring the flow.
func (b *Builder) File(file string) *Builder {
	b.file = file
	return b
}

// Param declares a run-time parameter.
func (b *Builder) Param(p *flow.Parameter) *Builder {
	b.params = append(b.params, p)
	return b
}

// Config declares a configuration parameter.
func (b *Builder) Config(c *flow.Config) *Builder {
	b.cfgs = append(b.cfgs, c)
	return b
}

// Constant declares a flow-level constant.
func (b *Builder) Constant(name string, value any) *Builder {
	b.consts = append(b.consts, flow.Constant{Name: name, Value: value})
	return b
}

// Decorate attaches a statically defined flow decorator.
func (b *Builder) Decorate(name string, attrs map[string]any) *Builder {
	b.decos = append(b.decos, flow.NewDecorator(name, attrs))
	return b
}

// Mutate registers a flow-level mutator.
func (b *Builder) Mutate(m flow.Mutator) *Builder {
	b.muts = append(b.muts, m)
	return b
}

// Extends inherits from base flows.
func (b *Builder) Extends(bases ...*flow.Spec) *Builder {
	b.bases = append(b.bases, bases...)
	return b
}

// Build compiles the declarations into a flow definition.
// It reports every declaration error at once.
func (b *Builder) Build() (*flow.Spec, error) {
	spec := flow.New(b.name)
	spec.Doc = b.doc
	spec.File = b.file

	var errs []error
	for _, name := range b.order {
		if err := spec.AddStep(b.steps[name].decl); err != nil {
			errs = append(errs, err)
		}
	}
	for _, d := range b.decos {
		if err := spec.AddDecorator(d); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range b.params {
		spec.AddParameter(p)
	}
	for _, c := range b.cfgs {
		spec.AddConfig(c)
	}
	for _, c := range b.consts {
		spec.SetConstant(c.Name, c.Value)
	}
	for _, m := range b.muts {
		spec.AddFlowMutator(m)
	}
	if len(b.bases) > 0 {
		if err := spec.Extends(b.bases...); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build flow %s: %w", b.name, err)
	}
	return spec, nil
}

// MustBuild is like Build but panics on error. Intended for flow declarations in main packages.
func (b *Builder) MustBuild() *flow.Spec {
	spec, err := b.Build()
	if err != nil {
		panic(err)
	}
	return spec
}
