package ports

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// BlobStore is the raw key-value storage of one task's artifacts.
// Adapters implement it; the codec layer turns it into an ArtifactStore.
type BlobStore interface {
	// Items lists every stored artifact with its content fingerprint.
	Items(ctx context.Context) ([]domain.ArtifactRecord, error)

	// LoadBlob returns the stored form of an artifact.
	// Returns domain.ErrArtifactNotFound if the name is unknown.
	LoadBlob(ctx context.Context, name string) (domain.Blob, error)

	// SaveBlob stores (or replaces) an artifact.
	SaveBlob(ctx context.Context, name string, blob domain.Blob) error
}

// ArtifactStore is the per-task artifact interface consumed by the engine.
type ArtifactStore interface {
	BlobStore

	// Load decodes an artifact. Returns domain.ErrArtifactNotFound if missing.
	Load(ctx context.Context, name string) (any, error)

	// Save encodes and stores a value.
	Save(ctx context.Context, name string, value any) error

	// Has reports whether an artifact exists.
	Has(ctx context.Context, name string) (bool, error)

	// Passdown copies the stored form of the named artifacts from another task.
	// Values are copied, never recomputed.
	Passdown(ctx context.Context, from BlobStore, names []string) error
}

// Datastore opens the artifact stores of individual tasks.
type Datastore interface {
	// Open returns the store of one task, creating it if needed.
	Open(ctx context.Context, path domain.TaskPath) (ArtifactStore, error)

	// Tasks lists the task ids of a step in a run.
	// Returns domain.ErrTaskNotFound if the step has no tasks.
	Tasks(ctx context.Context, flow, run, step string) ([]string, error)

	// Runs lists the run ids recorded for a flow.
	Runs(ctx context.Context, flow string) ([]string, error)
}
