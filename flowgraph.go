package flowgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/internal/pipeline"
	"github.com/aretw0/flowgraph/internal/settings"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/flow"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// DefaultLockTTL bounds how long a task attempt may hold its lock.
const DefaultLockTTL = time.Minute

// StepFunc is the body of a non-join step.
type StepFunc func(ctx context.Context, t *Task) error

// JoinFunc is the body of a join step. inputs holds one entry per inbound branch.
type JoinFunc func(ctx context.Context, t *Task, inputs Inputs) error

// Flow binds a flow definition to step bodies and the infrastructure tasks run on.
type Flow struct {
	Name string

	spec  *flow.Spec
	graph *graph.Graph
	steps map[string]StepFunc
	joins map[string]JoinFunc

	datastore ports.Datastore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	settings  settings.Settings
}

var _ ports.Inspector = (*Flow)(nil)

// Option defines a functional option for configuring the Flow.
type Option func(*Flow)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(f *Flow) {
		f.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the flow.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithDatastore injects the artifact datastore. Defaults to an in-memory one.
func WithDatastore(ds ports.Datastore) Option {
	return func(f *Flow) {
		f.datastore = ds
	}
}

// WithLocker guards every task attempt with a lock on its task path.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(f *Flow) {
		f.locker = l
		f.lockTTL = ttl
	}
}

// WithSettings overrides the ambient settings.
func WithSettings(s settings.Settings) Option {
	return func(f *Flow) {
		f.settings = s
	}
}

// New binds a flow definition. Step bodies are registered with Handle and HandleJoin.
func New(spec *flow.Spec, opts ...Option) *Flow {
	f := &Flow{
		Name:     spec.Name,
		spec:     spec,
		graph:    graph.New(spec),
		steps:    make(map[string]StepFunc),
		joins:    make(map[string]JoinFunc),
		settings: settings.Default(),
		lockTTL:  DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.NewNop()
	}
	if f.datastore == nil {
		f.datastore = memory.NewDatastore()
	}
	return f
}

// Configure applies options after construction. Command line wrappers use it
// to inject the datastore and logger chosen by the settings.
func (f *Flow) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = logging.NewNop()
	}
}

// Hooks returns the lifecycle hooks in use.
func (f *Flow) Hooks() domain.LifecycleHooks { return f.hooks }

// Handle registers the body of a step.
func (f *Flow) Handle(step string, fn StepFunc) *Flow {
	f.steps[step] = fn
	return f
}

// HandleJoin registers the body of a join step.
func (f *Flow) HandleJoin(step string, fn JoinFunc) *Flow {
	f.joins[step] = fn
	return f
}

// Process runs the config pipeline once and re-derives the graph when mutators changed it.
// Later calls are no-ops.
func (f *Flow) Process(ctx context.Context, configOptions map[string]any) error {
	g, err := pipeline.Process(ctx, f.spec, configOptions, true,
		pipeline.WithLogger(f.logger),
		pipeline.WithLifecycleHooks(f.hooks),
	)
	if err != nil {
		return err
	}
	if g != nil {
		f.graph = g
	}
	return nil
}

// Check lints the graph and verifies every step has a body of the right kind.
func (f *Flow) Check() error {
	var errs []error
	if err := f.graph.Lint(); err != nil {
		errs = append(errs, graph.LintErrors(err)...)
	}
	for _, n := range f.graph.Nodes() {
		_, hasStep := f.steps[n.Name]
		_, hasJoin := f.joins[n.Name]
		switch {
		case !hasStep && !hasJoin:
			errs = append(errs, &graph.LintIssue{Step: n.Name, Reason: "step has no body"})
		case hasJoin && n.Type != domain.NodeTypeJoin:
			errs = append(errs, &graph.LintIssue{Step: n.Name, Reason: "join body registered on a step that is not a join"})
		}
	}
	for name := range f.steps {
		if _, ok := f.graph.Node(name); !ok {
			errs = append(errs, &graph.LintIssue{Step: name, Reason: "body registered for an undeclared step"})
		}
	}
	if len(errs) > 0 {
		return &graph.LintError{Errors: errs}
	}
	return nil
}

// Spec returns the flow definition.
func (f *Flow) Spec() *flow.Spec { return f.spec }

// Graph returns the current graph.
func (f *Flow) Graph() *graph.Graph { return f.graph }

// Nodes returns the graph in declaration order.
func (f *Flow) Nodes() []*domain.StepNode { return f.graph.Nodes() }

// Info returns the graph record persisted with every run.
func (f *Flow) Info(ctx context.Context) (*domain.GraphInfo, error) {
	return f.graph.Info(), nil
}

// Datastore returns the artifact datastore.
func (f *Flow) Datastore() ports.Datastore { return f.datastore }

// Settings returns the ambient settings in use.
func (f *Flow) Settings() settings.Settings { return f.settings }

// Logger returns the flow logger.
func (f *Flow) Logger() *slog.Logger { return f.logger }

func (f *Flow) eventBase(typ domain.EventType, run string) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: typ, Flow: f.Name, RunID: run}
}

func (f *Flow) node(step string) (*domain.StepNode, error) {
	n, ok := f.graph.Node(step)
	if !ok {
		return nil, fmt.Errorf("flow %s has no step %q", f.Name, step)
	}
	return n, nil
}
