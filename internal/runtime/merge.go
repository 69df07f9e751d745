package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// MergeInput is one inbound branch of a join.
type MergeInput struct {
	// Branch identifies the branch in logs and events (usually its task path).
	Branch string
	Store  ports.BlobStore
}

// MergeOptions restricts which artifacts are merged. Include and Exclude are
// mutually exclusive.
type MergeOptions struct {
	Include []string
	Exclude []string
}

// MergeResult describes a successful merge.
type MergeResult struct {
	// Merged lists the artifacts copied into the join task, sorted.
	Merged []string
}

// Merger reconciles the artifacts of the branches reaching a join task.
type Merger struct {
	graph  ports.Graph
	step   string
	state  *State
	logger *slog.Logger
}

// NewMerger creates the merger for a task of step.
func NewMerger(graph ports.Graph, step string, state *State, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Merger{graph: graph, step: step, state: state, logger: logger}
}

type candidate struct {
	from        int
	fingerprint string
}

// Merge copies into the task every artifact the branches agree on.
//
// Artifacts already visible in the task always win and are never considered.
// Conflicts and missing includes are reported in full; nothing is written
// unless the whole merge is valid.
func (m *Merger) Merge(ctx context.Context, inputs []MergeInput, opts MergeOptions) (*MergeResult, error) {
	node, ok := m.graph.Node(m.step)
	if !ok || node.Type != domain.NodeTypeJoin {
		return nil, &domain.MergeUsageError{Step: m.step, Msg: "merge can only be called in a join and this step is not a join"}
	}
	if len(opts.Include) > 0 && len(opts.Exclude) > 0 {
		return nil, &domain.MergeUsageError{Step: m.step, Msg: "exclude and include are mutually exclusive"}
	}

	toMerge := make(map[string]candidate)
	var unresolved []string
	for i, inp := range inputs {
		items, err := inp.Store.Items(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts of %s: %w", inp.Branch, err)
		}
		for _, rec := range items {
			consider, err := m.considered(ctx, rec.Name, opts)
			if err != nil {
				return nil, err
			}
			if !consider {
				continue
			}
			prev, seen := toMerge[rec.Name]
			if !seen {
				toMerge[rec.Name] = candidate{from: i, fingerprint: rec.Fingerprint}
				continue
			}
			if prev.fingerprint != rec.Fingerprint && !slices.Contains(unresolved, rec.Name) {
				unresolved = append(unresolved, rec.Name)
			}
		}
	}

	var missing []string
	for _, name := range opts.Include {
		if _, ok := toMerge[name]; ok {
			continue
		}
		local, err := m.state.Has(ctx, name)
		if err != nil {
			return nil, err
		}
		if !local {
			missing = append(missing, name)
		}
	}

	if len(unresolved) > 0 {
		m.logger.Warn("Merge conflicts", "step", m.step, "artifacts", unresolved)
		return nil, &domain.UnhandledInMergeArtifactsError{Step: m.step, Artifacts: unresolved}
	}
	if len(missing) > 0 {
		return nil, &domain.MissingInMergeArtifactsError{
			Step:    m.step,
			Include: slices.Clone(opts.Include),
			Missing: missing,
		}
	}

	merged := make([]string, 0, len(toMerge))
	source := branchBlobs{inputs: inputs, picked: toMerge}
	for name := range toMerge {
		merged = append(merged, name)
	}
	slices.Sort(merged)
	// One passdown reads every branch before the first write. A store that
	// fails while writing can still leave the earlier artifacts behind.
	if err := m.state.Own().Passdown(ctx, source, merged); err != nil {
		return nil, fmt.Errorf("failed to merge into %s: %w", m.step, err)
	}
	m.logger.Debug("Artifacts merged", "step", m.step, "count", len(merged))
	return &MergeResult{Merged: merged}, nil
}

func (m *Merger) considered(ctx context.Context, name string, opts MergeOptions) (bool, error) {
	// An include list is taken literally and may name internal artifacts.
	if len(opts.Include) > 0 {
		if !slices.Contains(opts.Include, name) {
			return false, nil
		}
	} else if slices.Contains(opts.Exclude, name) || domain.IsInternalArtifact(name) {
		return false, nil
	}
	local, err := m.state.Has(ctx, name)
	if err != nil {
		return false, err
	}
	return !local, nil
}

// branchBlobs reads each merged artifact from the branch it was picked from.
type branchBlobs struct {
	inputs []MergeInput
	picked map[string]candidate
}

func (b branchBlobs) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	records := make([]domain.ArtifactRecord, 0, len(b.picked))
	for name, c := range b.picked {
		records = append(records, domain.ArtifactRecord{
			Name:        name,
			Branch:      b.inputs[c.from].Branch,
			Fingerprint: c.fingerprint,
		})
	}
	return records, nil
}

func (b branchBlobs) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	c, ok := b.picked[name]
	if !ok {
		return domain.Blob{}, domain.ErrArtifactNotFound
	}
	return b.inputs[c.from].Store.LoadBlob(ctx, name)
}

func (b branchBlobs) SaveBlob(context.Context, string, domain.Blob) error {
	return fmt.Errorf("merge sources are read-only")
}
