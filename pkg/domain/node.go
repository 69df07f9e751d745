package domain

// NodeType defines how a step connects to the steps that follow it.
type NodeType string

// NodeType constants define the control flow behavior.
const (
	// NodeTypeStart is the entry step of every flow.
	NodeTypeStart NodeType = "start"
	// NodeTypeLinear continues to exactly one step.
	NodeTypeLinear NodeType = "linear"
	// NodeTypeSplitStatic fans out to a fixed set of steps.
	NodeTypeSplitStatic NodeType = "split-static"
	// NodeTypeSplitForeach fans out to one task per element of an artifact.
	NodeTypeSplitForeach NodeType = "split-foreach"
	// NodeTypeSplitParallel fans out to a fixed number of parallel workers.
	NodeTypeSplitParallel NodeType = "split-parallel"
	// NodeTypeJoin waits for every inbound branch.
	NodeTypeJoin NodeType = "join"
	// NodeTypeEnd terminates the flow (sink state).
	NodeTypeEnd NodeType = "end"
)

// Reserved step names.
const (
	StartStep = "start"
	EndStep   = "end"
)

// IsSplit reports whether the node fans out.
func (t NodeType) IsSplit() bool {
	return t == NodeTypeSplitStatic || t == NodeTypeSplitForeach || t == NodeTypeSplitParallel
}

// DecoratorRef is the serializable view of a decorator attached to a step or flow.
type DecoratorRef struct {
	Name              string         `json:"name" yaml:"name"`
	Attributes        map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	StaticallyDefined bool           `json:"statically_defined" yaml:"statically_defined"`
	InsertedBy        []string       `json:"inserted_by,omitempty" yaml:"inserted_by,omitempty"`
}

// StepNode represents a logical unit in the graph.
// Nodes are derived from a flow definition and are immutable afterwards.
type StepNode struct {
	Name string   `json:"name" yaml:"name"`
	Type NodeType `json:"type" yaml:"type"`

	// OutFuncs is the ordered list of declared destinations.
	OutFuncs []string `json:"out_funcs" yaml:"out_funcs"`
	// InFuncs lists the steps that transition into this one, in declaration order.
	InFuncs []string `json:"in_funcs" yaml:"in_funcs"`

	// ForeachVar names the artifact iterated by a split-foreach node.
	ForeachVar string `json:"foreach_var,omitempty" yaml:"foreach_var,omitempty"`
	// Unbounded marks splits whose width is only known at runtime.
	Unbounded bool `json:"unbounded,omitempty" yaml:"unbounded,omitempty"`

	Decorators []DecoratorRef `json:"decorators,omitempty" yaml:"decorators,omitempty"`
	Doc        string         `json:"doc,omitempty" yaml:"doc,omitempty"`
}
