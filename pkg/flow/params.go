package flow

import (
	"fmt"
	"maps"
	"strings"

	"github.com/aretw0/flowgraph/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// NormalizeName is how parameter and config names are looked up in option maps.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "-", "_"))
}

// Delayed is a placeholder for a value computed on first use.
// It must be forced before the value is handed to user code.
type Delayed func() (any, error)

// Force evaluates v if it is a Delayed placeholder.
func Force(v any) (any, error) {
	if d, ok := v.(Delayed); ok {
		return d()
	}
	return v, nil
}

// ConfigLookup gives parameter defaults read access to resolved configuration.
type ConfigLookup interface {
	Config(name string) (ConfigValue, bool)
}

// Deferred is a parameter default computed from resolved configuration.
type Deferred func(ConfigLookup) (any, error)

// ParameterError reports a malformed or missing parameter. It is a user error.
type ParameterError struct {
	Name string
	Msg  string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %s", e.Name, e.Msg)
}

// Parameter is a run-time argument of a flow.
type Parameter struct {
	Name string
	Help string
	// Default is a plain value, a Delayed placeholder or a Deferred function of configs.
	Default  any
	Required bool
	// Separator splits string values into lists when non-empty.
	Separator string
	// Type, when set, is checked against the resolved value.
	Type schema.Type

	initialized bool
	resolved    any
}

// Init resolves a Deferred default once so later lookups see a plain value.
// With ignoreErrors set, a failing default is left unresolved.
func (p *Parameter) Init(lookup ConfigLookup, ignoreErrors bool) error {
	if p.initialized {
		return nil
	}
	switch d := p.Default.(type) {
	case Deferred:
		v, err := d(lookup)
		if err != nil {
			if ignoreErrors {
				return nil
			}
			return &ParameterError{Name: p.Name, Msg: "default: " + err.Error()}
		}
		p.resolved = v
	default:
		p.resolved = p.Default
	}
	p.initialized = true
	return nil
}

// clone copies the declaration without its resolved default.
func (p *Parameter) clone() *Parameter {
	cp := *p
	cp.initialized = false
	cp.resolved = nil
	return &cp
}

// Initialized reports whether Init succeeded.
func (p *Parameter) Initialized() bool { return p.initialized }

// DefaultValue returns the resolved default (the raw Default before Init).
func (p *Parameter) DefaultValue() any {
	if p.initialized {
		return p.resolved
	}
	if _, deferred := p.Default.(Deferred); deferred {
		return nil
	}
	return p.Default
}

// Value resolves the value of p from run options.
func (p *Parameter) Value(options map[string]any) (any, error) {
	v, ok := options[NormalizeName(p.Name)]
	if !ok {
		v = p.DefaultValue()
	}
	v, err := Force(v)
	if err != nil {
		return nil, &ParameterError{Name: p.Name, Msg: err.Error()}
	}
	if v == nil && p.Required {
		return nil, &ParameterError{Name: p.Name, Msg: "is required"}
	}
	if s, isString := v.(string); isString && s != "" && p.Separator != "" {
		parts := strings.Split(s, p.Separator)
		list := make([]any, len(parts))
		for i, part := range parts {
			list[i] = part
		}
		v = list
	}
	if cv, isConfig := v.(ConfigValue); isConfig {
		v = cv.ToMap()
	}
	return v, nil
}

// Config is a configuration parameter. Its value is resolved once, before the
// graph is finalized, and may drive mutators.
type Config struct {
	Name string
	Help string
	// Default is used when no option is given; it may be a Delayed placeholder.
	Default  any
	Required bool
}

func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// ConfigValue is a resolved configuration: a read-only tree of maps, lists and scalars.
type ConfigValue struct {
	data map[string]any
}

// NewConfigValue wraps a decoded configuration document.
func NewConfigValue(data map[string]any) ConfigValue {
	return ConfigValue{data: data}
}

// ToMap returns a copy of the top-level map.
func (c ConfigValue) ToMap() map[string]any {
	return maps.Clone(c.data)
}

// Get returns the value at a dotted path such as "resources.cpu".
func (c ConfigValue) Get(path string) (any, bool) {
	var cur any = c.data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Decode copies the configuration into a struct using mapstructure tags.
func (c ConfigValue) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(c.data)
}

// IsZero reports whether the value holds no data.
func (c ConfigValue) IsZero() bool { return c.data == nil }

// toConfigValue converts a forced option into a ConfigValue.
func toConfigValue(name string, v any) (ConfigValue, error) {
	switch x := v.(type) {
	case nil:
		return ConfigValue{}, nil
	case ConfigValue:
		return x, nil
	case map[string]any:
		return NewConfigValue(x), nil
	default:
		return ConfigValue{}, &ParameterError{Name: name, Msg: fmt.Sprintf("config must be a mapping, got %T", v)}
	}
}
