// Package flow holds flow definitions: ordered steps, decorators, parameters,
// configs and the mutators that rewrite them from resolved configuration.
package flow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/schema"
)

// Spec is one flow definition. Several specs may coexist in a process; each
// carries its own State.
type Spec struct {
	Name string
	Doc  string
	// File is the program the flow is declared in, recorded in graph info.
	File string

	steps        []*StepDecl
	decorators   []*Decorator
	params       []*Parameter
	configs      []*Config
	constants    []Constant
	flowMutators []Mutator
	bases        []*Spec

	state *State
}

// Constant is a flow-level value persisted with every run.
type Constant struct {
	Name  string
	Value any
}

// New creates an empty flow definition.
func New(name string) *Spec {
	return &Spec{Name: name, state: newState()}
}

// State returns the per-flow bookkeeping.
func (s *Spec) State() *State { return s.state }

// Extends inherits from base flows, in order: steps, parameters and configs not
// already declared, flow decorators and flow mutators.
// Steps, parameters and configs are copied, so resolving defaults on one flow
// never affects another.
// A non-multiple flow decorator present twice is an InternalError.
func (s *Spec) Extends(bases ...*Spec) error {
	for _, base := range bases {
		if base == s || base.Inherits(s) {
			return domain.Internalf("flow %s cannot extend %s: cycle", s.Name, base.Name)
		}
		for _, deco := range base.decorators {
			if !deco.AllowMultiple && slices.ContainsFunc(s.decorators, func(d *Decorator) bool { return d.Name == deco.Name }) {
				return domain.Internalf("duplicate flow decorator %q inherited from %s", deco.Name, base.Name)
			}
			s.decorators = append(s.decorators, deco.clone())
		}
		for _, c := range base.configs {
			if !slices.ContainsFunc(s.configs, func(own *Config) bool { return own.Name == c.Name }) {
				s.configs = append(s.configs, c.clone())
			}
		}
		s.flowMutators = append(s.flowMutators, base.flowMutators...)
		for _, step := range base.steps {
			if _, ok := s.Step(step.Name); !ok {
				s.steps = append(s.steps, step.clone())
			}
		}
		for _, p := range base.params {
			if s.parameter(p.Name) == nil {
				s.params = append(s.params, p.clone())
			}
		}
		if s.Doc == "" {
			s.Doc = base.Doc
		}
		s.bases = append(s.bases, base)
	}
	s.state.InvalidateParameters()
	return nil
}

// Inherits reports whether other is a (transitive) base of s.
func (s *Spec) Inherits(other *Spec) bool {
	for _, b := range s.bases {
		if b == other || b.Inherits(other) {
			return true
		}
	}
	return false
}

// AddStep registers a step. Step names are unique and case-sensitive.
func (s *Spec) AddStep(decl *StepDecl) error {
	if decl.Name == "" {
		return fmt.Errorf("step name cannot be empty")
	}
	if _, exists := s.Step(decl.Name); exists {
		return fmt.Errorf("step %q declared twice in flow %s", decl.Name, s.Name)
	}
	for _, m := range decl.Mutators {
		if b, ok := m.(Bindable); ok {
			b.BindFlow(s)
		}
	}
	s.steps = append(s.steps, decl)
	return nil
}

// Step returns the declaration of a step.
func (s *Spec) Step(name string) (*StepDecl, bool) {
	for _, st := range s.steps {
		if st.Name == name {
			return st, true
		}
	}
	return nil, false
}

// Steps returns the steps in declaration order.
func (s *Spec) Steps() []*StepDecl {
	return slices.Clone(s.steps)
}

// AddDecorator attaches a statically declared flow decorator.
func (s *Spec) AddDecorator(d *Decorator) error {
	var err error
	s.decorators, err = addDecorator(s.decorators, d, DuplicateError, "flow "+s.Name)
	return err
}

// Decorators returns the flow decorators in order.
func (s *Spec) Decorators() []*Decorator {
	return slices.Clone(s.decorators)
}

// AddFlowMutator registers a flow-level mutator and binds it to this flow.
// Capability is checked when the pipeline runs.
func (s *Spec) AddFlowMutator(m Mutator) {
	if b, ok := m.(Bindable); ok {
		b.BindFlow(s)
	}
	s.flowMutators = append(s.flowMutators, m)
}

// FlowMutators returns the flow-level mutators in registration order.
func (s *Spec) FlowMutators() []Mutator {
	return slices.Clone(s.flowMutators)
}

// HasMutators reports whether any flow or step mutator is registered.
func (s *Spec) HasMutators() bool {
	if len(s.flowMutators) > 0 {
		return true
	}
	return slices.ContainsFunc(s.steps, func(st *StepDecl) bool { return len(st.Mutators) > 0 })
}

// AddParameter registers (or replaces, by exact name) a run-time parameter.
func (s *Spec) AddParameter(p *Parameter) {
	for i, existing := range s.params {
		if existing.Name == p.Name {
			s.params[i] = p
			return
		}
	}
	s.params = append(s.params, p)
}

func (s *Spec) removeParameter(name string) bool {
	before := len(s.params)
	s.params = slices.DeleteFunc(s.params, func(p *Parameter) bool { return p.Name == name })
	return len(s.params) != before
}

func (s *Spec) parameter(name string) *Parameter {
	for _, p := range s.params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Parameters returns the non-config parameters. The list is cached in State
// until invalidated.
func (s *Spec) Parameters() []*Parameter {
	if s.state.cachedParams == nil {
		s.state.cachedParams = slices.Clone(s.params)
		if s.state.cachedParams == nil {
			s.state.cachedParams = []*Parameter{}
		}
	}
	return slices.Clone(s.state.cachedParams)
}

// AddConfig registers (or replaces, by exact name) a config.
func (s *Spec) AddConfig(c *Config) {
	s.putConfig(c)
}

func (s *Spec) putConfig(c *Config) {
	for i, existing := range s.configs {
		if existing.Name == c.Name {
			s.configs[i] = c
			return
		}
	}
	s.configs = append(s.configs, c)
}

// Configs returns the declared configs in order.
func (s *Spec) Configs() []*Config {
	return slices.Clone(s.configs)
}

// Config returns the resolved value of a config. Before the pipeline resolves
// configs it falls back to the options recorded on the fast path.
func (s *Spec) Config(name string) (ConfigValue, bool) {
	key := NormalizeName(name)
	if v, ok := s.state.configValues[key]; ok {
		return v, true
	}
	for _, c := range s.configs {
		if NormalizeName(c.Name) != key {
			continue
		}
		v, err := s.ResolveConfig(c, s.state.options)
		if err != nil || v.IsZero() {
			return ConfigValue{}, false
		}
		return v, true
	}
	return ConfigValue{}, false
}

// ResolveConfig computes a config value from options, forcing delayed placeholders.
func (s *Spec) ResolveConfig(c *Config, options map[string]any) (ConfigValue, error) {
	raw, ok := options[NormalizeName(c.Name)]
	if !ok {
		raw = c.Default
	}
	raw, err := Force(raw)
	if err != nil {
		return ConfigValue{}, &ParameterError{Name: c.Name, Msg: err.Error()}
	}
	if raw == nil && c.Required {
		return ConfigValue{}, &ParameterError{Name: c.Name, Msg: "config is required"}
	}
	return toConfigValue(c.Name, raw)
}

// CheckParameters rejects two configs (or two parameters) whose names only differ by case.
func (s *Spec) CheckParameters(configs bool) error {
	var names []string
	if configs {
		for _, c := range s.configs {
			names = append(names, c.Name)
		}
	} else {
		for _, p := range s.Parameters() {
			names = append(names, p.Name)
		}
	}
	seen := map[string]struct{}{}
	for _, name := range names {
		norm := strings.ToLower(name)
		if _, dup := seen[norm]; dup {
			return &ParameterError{Name: name, Msg: "is specified twice; parameter names are case-insensitive"}
		}
		seen[norm] = struct{}{}
	}
	return nil
}

// ResolveParameters computes the value of every parameter and config for a run.
// Config values are returned in map form.
func (s *Spec) ResolveParameters(options map[string]any) (map[string]any, error) {
	if err := s.CheckParameters(false); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, c := range s.configs {
		v, ok := s.Config(c.Name)
		if !ok {
			var err error
			if v, err = s.ResolveConfig(c, options); err != nil {
				return nil, err
			}
		}
		if v.IsZero() {
			out[c.Name] = nil
			continue
		}
		out[c.Name] = v.ToMap()
	}
	types := schema.Schema{}
	for _, p := range s.Parameters() {
		v, err := p.Value(options)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
		if p.Type != nil {
			types[p.Name] = p.Type
		}
	}
	if err := schema.Validate(types, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetConstant records a flow-level constant.
func (s *Spec) SetConstant(name string, value any) {
	for i, c := range s.constants {
		if c.Name == name {
			s.constants[i].Value = value
			return
		}
	}
	s.constants = append(s.constants, Constant{Name: name, Value: value})
}

// Constants returns the constants in declaration order.
func (s *Spec) Constants() []Constant {
	return slices.Clone(s.constants)
}
