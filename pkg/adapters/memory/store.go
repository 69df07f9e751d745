package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Datastore implements ports.Datastore in memory.
// Safe for concurrent use.
type Datastore struct {
	mu    sync.RWMutex
	tasks map[domain.TaskPath]map[string]domain.Blob
}

var _ ports.Datastore = (*Datastore)(nil)

// NewDatastore creates a new in-memory datastore.
func NewDatastore() *Datastore {
	return &Datastore{
		tasks: make(map[domain.TaskPath]map[string]domain.Blob),
	}
}

// Open returns the store of one task, creating it if needed.
func (d *Datastore) Open(ctx context.Context, path domain.TaskPath) (ports.ArtifactStore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tasks[path]; !ok {
		d.tasks[path] = make(map[string]domain.Blob)
	}
	return artifact.NewStore(&taskStore{ds: d, path: path}), nil
}

// Tasks lists the task ids of a step in a run.
func (d *Datastore) Tasks(ctx context.Context, flow, run, step string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []string
	for p := range d.tasks {
		if p.Flow == flow && p.Run == run && p.Step == step {
			ids = append(ids, p.Task)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}

// Runs lists the run ids recorded for a flow.
func (d *Datastore) Runs(ctx context.Context, flow string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := map[string]struct{}{}
	for p := range d.tasks {
		if p.Flow == flow {
			seen[p.Run] = struct{}{}
		}
	}
	runs := make([]string, 0, len(seen))
	for r := range seen {
		runs = append(runs, r)
	}
	sort.Strings(runs)
	return runs, nil
}

type taskStore struct {
	ds   *Datastore
	path domain.TaskPath
}

func (s *taskStore) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	s.ds.mu.RLock()
	defer s.ds.mu.RUnlock()

	blobs := s.ds.tasks[s.path]
	items := make([]domain.ArtifactRecord, 0, len(blobs))
	for name, b := range blobs {
		items = append(items, domain.ArtifactRecord{Name: name, Branch: s.path.String(), Fingerprint: b.Fingerprint})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (s *taskStore) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	s.ds.mu.RLock()
	defer s.ds.mu.RUnlock()

	b, ok := s.ds.tasks[s.path][name]
	if !ok {
		return domain.Blob{}, domain.ErrArtifactNotFound
	}
	// Copy on read so callers can't mutate stored bytes
	return domain.Blob{Fingerprint: b.Fingerprint, Data: slices.Clone(b.Data)}, nil
}

func (s *taskStore) SaveBlob(ctx context.Context, name string, blob domain.Blob) error {
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	blobs, ok := s.ds.tasks[s.path]
	if !ok {
		blobs = make(map[string]domain.Blob)
		s.ds.tasks[s.path] = blobs
	}
	blobs[name] = domain.Blob{Fingerprint: blob.Fingerprint, Data: slices.Clone(blob.Data)}
	return nil
}
