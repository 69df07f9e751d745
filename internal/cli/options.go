package cli

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/internal/settings"
	"gopkg.in/yaml.v3"
)

// ParseParams turns repeated --param name=value flags into run options.
// Values are decoded as YAML scalars, so numbers and booleans keep their type.
func ParseParams(flags []string) (map[string]any, error) {
	out := make(map[string]any, len(flags))
	for _, f := range flags {
		name, raw, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q, expected name=value", f)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[name] = v
	}
	return out, nil
}

// ParseConfigs loads repeated --config name=path flags into config options.
func ParseConfigs(flags []string) (map[string]any, error) {
	out := make(map[string]any, len(flags))
	for _, f := range flags {
		name, data, err := settings.ParseConfigOption(f)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// MergeOptions combines parameter and config options; configs win.
func MergeOptions(params, configs map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(configs))
	for k, v := range params {
		out[k] = v
	}
	for k, v := range configs {
		out[k] = v
	}
	return out
}
