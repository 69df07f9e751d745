package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Option keys accepted by next().
const (
	OptionForeach     = "foreach"
	OptionNumParallel = "num_parallel"
)

// StepNamer is implemented by typed step references passed to next().
type StepNamer interface {
	StepName() string
}

// Call is one next() invocation: positional destinations and keyword options.
type Call struct {
	Destinations []any
	Options      map[string]any
}

// ValidatorOptions tunes how bounded foreach sources are recorded.
type ValidatorOptions struct {
	// IncludeForeachStack keeps a display string for every split.
	IncludeForeachStack bool
	// MaxForeachValueChars bounds each display string.
	MaxForeachValueChars int
	Logger               *slog.Logger
}

// DefaultValidatorOptions returns the ambient defaults.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		IncludeForeachStack:  true,
		MaxForeachValueChars: DefaultMaxForeachValueChars,
	}
}

// Validator checks the next() call of one task and records its transition.
type Validator struct {
	graph ports.Graph
	step  string
	state *State
	opts  ValidatorOptions

	transition *domain.Transition
}

// NewValidator creates the validator of one task of step.
func NewValidator(graph ports.Graph, step string, state *State, opts ValidatorOptions) *Validator {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Validator{graph: graph, step: step, state: state, opts: opts}
}

// Transition returns the recorded transition, if next() was called.
func (v *Validator) Transition() (domain.Transition, bool) {
	if v.transition == nil {
		return domain.Transition{}, false
	}
	return *v.transition, true
}

func (v *Validator) fail(kind domain.InvalidNextKind, arg, format string, args ...any) error {
	return &domain.InvalidNextError{
		Kind: kind,
		Step: v.step,
		Arg:  arg,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Validate checks call and records the resulting transition. Nothing is
// recorded when validation fails.
func (v *Validator) Validate(ctx context.Context, call Call) (domain.Transition, error) {
	// 1. Unknown options
	keys := make([]string, 0, len(call.Options))
	for k := range call.Options {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if k != OptionForeach && k != OptionNumParallel {
			return domain.Transition{}, v.fail(domain.UnknownArgument, k,
				"unknown keyword argument %q passed to next()", k)
		}
	}

	// 2. Once per task
	if v.transition != nil {
		return domain.Transition{}, v.fail(domain.MultipleTransitions, "",
			"multiple next() calls detected; call next() only once")
	}

	// 3. Destinations
	dsts := make([]string, 0, len(call.Destinations))
	for i, d := range call.Destinations {
		var name string
		switch dst := d.(type) {
		case string:
			name = dst
		case StepNamer:
			name = dst.StepName()
		default:
			return domain.Transition{}, v.fail(domain.NotAStep, fmt.Sprint(d),
				"argument %d of next() is not a step (got %T)", i+1, d)
		}
		if _, ok := v.graph.Node(name); !ok {
			return domain.Transition{}, v.fail(domain.UnknownStep, name,
				"next() transition to an unknown step %q", name)
		}
		dsts = append(dsts, name)
	}

	t := domain.Transition{Destinations: dsts}
	foreach, hasForeach := call.Options[OptionForeach]
	if s, ok := foreach.(string); ok && s == "" {
		hasForeach = false
	}
	if hasForeach && foreach == nil {
		hasForeach = false
	}

	// 4. num_parallel becomes a foreach over a ParallelUBF
	if raw, ok := call.Options[OptionNumParallel]; ok && raw != nil {
		n, err := toInt(raw)
		if err != nil {
			return domain.Transition{}, v.fail(domain.InvalidParallel, fmt.Sprint(raw),
				"num_parallel must be an integer: %v", err)
		}
		if n < 1 {
			return domain.Transition{}, v.fail(domain.InvalidParallel, fmt.Sprint(raw),
				"num_parallel must be at least 1, got %d", n)
		}
		if len(dsts) > 1 {
			return domain.Transition{}, v.fail(domain.ParallelTargets, "",
				"only one destination allowed when num_parallel is used in next()")
		}
		foreach, hasForeach = domain.ArtifactParallelUBFIter, true
		t.NumParallel = n
	}

	// 5. foreach
	if hasForeach {
		name, ok := foreach.(string)
		if !ok {
			return domain.Transition{}, v.fail(domain.ForeachNotString, fmt.Sprint(foreach),
				"the argument to foreach must be a string, got %T", foreach)
		}
		if len(dsts) != 1 {
			return domain.Transition{}, v.fail(domain.ForeachTargets, name,
				"specify exactly one target for foreach, got %d", len(dsts))
		}
		var src any
		if t.NumParallel > 0 {
			src = domain.ParallelUBF{NumParallel: t.NumParallel}
		} else {
			var err error
			src, err = v.state.Get(ctx, name)
			if errors.Is(err, domain.ErrArtifactNotFound) {
				return domain.Transition{}, v.fail(domain.ForeachMissing, name,
					"foreach variable %q does not exist", name)
			}
			if err != nil {
				return domain.Transition{}, err
			}
		}
		t.Foreach = name
		if t.NumParallel == 0 {
			if err := v.checkStorable(name, src); err != nil {
				return domain.Transition{}, err
			}
		}

		if _, unbounded := src.(domain.UnboundedInput); unbounded {
			t.Source = domain.SourceUnbounded
			if err := v.validateUnbounded(dsts[0]); err != nil {
				return domain.Transition{}, err
			}
		} else {
			t.Source = domain.SourceBounded
			if err := v.countSplits(&t, src); err != nil {
				return domain.Transition{}, err
			}
		}
	}

	// 6. Plain transitions need a destination
	if !hasForeach && len(dsts) < 1 {
		return domain.Transition{}, v.fail(domain.NoDestination, "",
			"specify at least one step as an argument to next()")
	}

	// 7. Record
	if t.NumParallel > 0 {
		v.state.Set(domain.ArtifactParallelUBFIter, domain.ParallelUBF{NumParallel: t.NumParallel})
	}
	v.transition = &t
	v.opts.Logger.Debug("Transition recorded",
		"step", v.step,
		"destinations", t.Destinations,
		"foreach", t.Foreach,
		"source", t.Source.String(),
		"num_splits", t.NumSplits)
	return t, nil
}

// checkStorable rejects foreach sources that split tasks could not load back:
// values the artifact codec cannot encode, and custom source types it would
// decode as plain maps.
func (v *Validator) checkStorable(name string, src any) error {
	switch src.(type) {
	case domain.UnboundedInput, domain.Indexable, domain.Iterable:
		if !artifact.Registered(src) {
			return v.fail(domain.ForeachNotStorable, name,
				"foreach variable %q has type %T, which must be registered with artifact.Register", name, src)
		}
	}
	if _, err := artifact.Encode(src); err != nil {
		return v.fail(domain.ForeachNotStorable, name,
			"foreach variable %q cannot be stored: %v", name, err)
	}
	return nil
}

// countSplits consumes a bounded source once.
func (v *Validator) countSplits(t *domain.Transition, src any) error {
	seq, err := each(src)
	if err != nil {
		return v.fail(domain.ForeachNotIterable, t.Foreach,
			"foreach variable %q is not iterable: %v", t.Foreach, err)
	}
	n := 0
	var values []string
	for item := range seq {
		if v.opts.IncludeForeachStack {
			values = append(values, ForeachValue(item, v.opts.MaxForeachValueChars))
		}
		n++
	}
	if n == 0 {
		return v.fail(domain.ZeroSplits, t.Foreach,
			"foreach iterator over %q produced zero splits", t.Foreach)
	}
	t.NumSplits = n
	t.Values = values
	return nil
}

// validateUnbounded allows an unbounded split only over a single step that
// leads straight into a join.
func (v *Validator) validateUnbounded(dst string) error {
	node, ok := v.graph.Node(dst)
	if !ok {
		return v.fail(domain.UnknownStep, dst, "next() transition to an unknown step %q", dst)
	}
	if len(node.OutFuncs) != 1 {
		return v.fail(domain.UnboundedTopology, dst,
			"unbounded foreach is supported only over a single step, not an arbitrary DAG; "+
				"specify a single join step instead of multiple: %v", node.OutFuncs)
	}
	join := node.OutFuncs[0]
	if jn, ok := v.graph.Node(join); !ok || jn.Type != domain.NodeTypeJoin {
		return v.fail(domain.UnboundedTopology, dst,
			"unbounded foreach found for %s -> %s; the join type isn't valid", dst, join)
	}
	return nil
}

func toInt(v any) (int, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != float64(int(f)) {
			return 0, fmt.Errorf("%v is not integral", f)
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
