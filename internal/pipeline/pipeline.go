// Package pipeline finalizes a flow definition from its resolved configuration:
// configs are resolved, mutators rewrite decorators and parameters, and the
// graph is derived again.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/flow"
	"github.com/aretw0/flowgraph/pkg/graph"
)

// Option configures a pipeline run.
type Option func(*options)

type options struct {
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// WithLogger sets the logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLifecycleHooks reports every applied mutator through OnMutate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// Process runs the config pipeline of spec at most once.
//
// It returns nil, nil when the pipeline already ran or when it takes the fast
// path (configs disabled, or no mutator registered). Otherwise it returns the
// graph derived from the mutated definition.
func Process(ctx context.Context, spec *flow.Spec, configOptions map[string]any, processConfigs bool, opts ...Option) (*graph.Graph, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("flow", spec.Name)
	state := spec.State()

	if !state.Latch() {
		logger.Debug("Config mutators already processed")
		return nil, nil
	}
	state.UseOptions(configOptions)

	if !processConfigs || !spec.HasMutators() {
		for _, p := range spec.Parameters() {
			if err := p.Init(spec, !processConfigs); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	logger.Debug("Processing config mutators")
	if err := spec.CheckParameters(true); err != nil {
		return nil, err
	}
	for _, c := range spec.Configs() {
		v, err := spec.ResolveConfig(c, configOptions)
		if err != nil {
			return nil, err
		}
		state.RememberConfig(c, v)
		logger.Debug("Config resolved", "config", c.Name, "set", !v.IsZero())
	}

	// Flow mutators first, then step mutators, matching decorator order elsewhere.
	for _, m := range spec.FlowMutators() {
		fm, ok := m.(flow.FlowMutator)
		if !ok {
			return nil, domain.Internalf("a non flow mutator %q found in flow mutators of %s", m.DecoratorName(), spec.Name)
		}
		if b, ok := m.(flow.Bindable); ok {
			if owner := b.BoundFlow(); owner != nil && owner != spec && !spec.Inherits(owner) {
				return nil, domain.Internalf("flow mutator %q registered on the wrong flow -- expected %s but got %s",
					m.DecoratorName(), owner.Name, spec.Name)
			}
		}
		view := flow.NewMutableFlow(spec, m.StaticallyDefined(), insertedBy(m))
		logger.Debug("Evaluating flow mutator", "mutator", m.DecoratorName())
		if err := fm.PreMutate(ctx, view); err != nil {
			return nil, fmt.Errorf("flow mutator %s: %w", m.DecoratorName(), err)
		}
		// Mutators may add parameters.
		state.InvalidateParameters()
		o.emit(ctx, spec.Name, m.DecoratorName(), "")
	}

	for _, st := range spec.Steps() {
		for _, m := range st.Mutators {
			sm, ok := m.(flow.StepMutator)
			if !ok {
				return nil, domain.Internalf("a non step mutator %q found in mutators of step %s", m.DecoratorName(), st.Name)
			}
			view := flow.NewMutableStep(spec, st, m.StaticallyDefined(), insertedBy(m))
			logger.Debug("Evaluating step mutator", "mutator", m.DecoratorName(), "step", st.Name)
			if err := sm.PreMutate(ctx, view); err != nil {
				return nil, fmt.Errorf("step mutator %s on %s: %w", m.DecoratorName(), st.Name, err)
			}
			o.emit(ctx, spec.Name, m.DecoratorName(), st.Name)
		}
	}

	for _, p := range spec.Parameters() {
		if err := p.Init(spec, false); err != nil {
			return nil, err
		}
	}

	return graph.New(spec), nil
}

// insertedBy is the provenance recorded on decorators a mutator adds.
func insertedBy(m flow.Mutator) []string {
	return append([]string{m.DecoratorName()}, slices.Clone(m.InsertedBy())...)
}

func (o *options) emit(ctx context.Context, flowName, decorator, step string) {
	if o.hooks.OnMutate == nil {
		return
	}
	o.hooks.OnMutate(ctx, &domain.MutateEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now(),
			Type:      domain.EventMutate,
			Flow:      flowName,
		},
		Decorator: decorator,
		Step:      step,
	})
}
