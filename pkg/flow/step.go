package flow

import (
	"maps"
	"slices"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// StepDecl declares one step of a flow: its name, its outgoing edges and its metadata.
// The body is registered separately on the runtime flow.
type StepDecl struct {
	Name string
	// Next lists the declared destinations in order.
	Next []string
	// Foreach names the artifact a foreach split iterates over.
	Foreach string
	// Parallel marks a num_parallel split.
	Parallel bool
	// Join marks a step that receives the inputs of every inbound branch.
	Join bool
	Doc  string

	Decorators []*Decorator
	// Mutators are the config-driven step mutators, in registration order.
	Mutators []Mutator
}

func (d *StepDecl) clone() *StepDecl {
	c := *d
	c.Next = slices.Clone(d.Next)
	c.Decorators = make([]*Decorator, len(d.Decorators))
	for i, deco := range d.Decorators {
		c.Decorators[i] = deco.clone()
	}
	c.Mutators = slices.Clone(d.Mutators)
	return &c
}

// Decorator is a named piece of metadata attached to a flow or a step.
type Decorator struct {
	Name       string
	Attributes map[string]any
	// AllowMultiple lets several instances with the same name coexist.
	AllowMultiple     bool
	StaticallyDefined bool
	// InsertedBy is the provenance chain of mutators that added this decorator.
	InsertedBy []string
}

// NewDecorator returns a statically defined decorator.
func NewDecorator(name string, attrs map[string]any) *Decorator {
	return &Decorator{Name: name, Attributes: attrs, StaticallyDefined: true}
}

func (d *Decorator) clone() *Decorator {
	c := *d
	c.Attributes = maps.Clone(d.Attributes)
	c.InsertedBy = slices.Clone(d.InsertedBy)
	return &c
}

// Ref returns the serializable view of the decorator.
func (d *Decorator) Ref() domain.DecoratorRef {
	return domain.DecoratorRef{
		Name:              d.Name,
		Attributes:        maps.Clone(d.Attributes),
		StaticallyDefined: d.StaticallyDefined,
		InsertedBy:        slices.Clone(d.InsertedBy),
	}
}

// DuplicatePolicy decides what adding an already present, non-multiple decorator does.
type DuplicatePolicy int

const (
	// DuplicateIgnore keeps the existing decorator.
	DuplicateIgnore DuplicatePolicy = iota
	// DuplicateOverride replaces the existing decorator.
	DuplicateOverride
	// DuplicateError fails with an InternalError.
	DuplicateError
)

// addDecorator applies the duplicate policy to an ordered decorator list.
func addDecorator(list []*Decorator, d *Decorator, policy DuplicatePolicy, owner string) ([]*Decorator, error) {
	if d.AllowMultiple {
		return append(list, d), nil
	}
	idx := slices.IndexFunc(list, func(x *Decorator) bool { return x.Name == d.Name })
	if idx < 0 {
		return append(list, d), nil
	}
	switch policy {
	case DuplicateOverride:
		list[idx] = d
		return list, nil
	case DuplicateError:
		return list, domain.Internalf("duplicate decorator %q on %s", d.Name, owner)
	default:
		return list, nil
	}
}

func removeDecorator(list []*Decorator, name string) ([]*Decorator, bool) {
	out := list[:0]
	removed := false
	for _, d := range list {
		if d.Name == name {
			removed = true
			continue
		}
		out = append(out, d)
	}
	return out, removed
}
