package domain

// GraphInfo is the structured record persisted with every run so external tools
// can render the flow without loading its code.
type GraphInfo struct {
	Flow           string              `json:"flow" yaml:"flow"`
	File           string              `json:"file" yaml:"file"`
	Parameters     []VarInfo           `json:"parameters" yaml:"parameters"`
	Constants      []VarInfo           `json:"constants" yaml:"constants"`
	Steps          map[string]StepInfo `json:"steps" yaml:"steps"`
	GraphStructure []any               `json:"graph_structure" yaml:"graph_structure"`
	Doc            string              `json:"doc,omitempty" yaml:"doc,omitempty"`
	Decorators     []DecoratorRef      `json:"decorators" yaml:"decorators"`
}

// VarInfo describes a parameter or constant by name and kind.
type VarInfo struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// StepInfo is the per-step entry of GraphInfo.
type StepInfo struct {
	Name            string         `json:"name" yaml:"name"`
	Type            NodeType       `json:"type" yaml:"type"`
	Doc             string         `json:"doc,omitempty" yaml:"doc,omitempty"`
	Next            []string       `json:"next" yaml:"next"`
	ForeachArtifact string         `json:"foreach_artifact,omitempty" yaml:"foreach_artifact,omitempty"`
	MatchingJoin    string         `json:"matching_join,omitempty" yaml:"matching_join,omitempty"`
	Decorators      []DecoratorRef `json:"decorators,omitempty" yaml:"decorators,omitempty"`
}
