// Package middleware wraps a Datastore to add behavior to every task store it
// opens: encryption at rest and redaction for inspection surfaces.
package middleware

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Middleware allows wrapping a Datastore to add behavior.
type Middleware func(ports.Datastore) ports.Datastore

// Chain applies middlewares so the first one is the outermost.
func Chain(ds ports.Datastore, mws ...Middleware) ports.Datastore {
	for i := len(mws) - 1; i >= 0; i-- {
		ds = mws[i](ds)
	}
	return ds
}

// blobWrapper turns a per-task blob wrapper into a Datastore middleware.
type blobWrapper struct {
	next ports.Datastore
	wrap func(ports.BlobStore) ports.BlobStore
}

func (d *blobWrapper) Open(ctx context.Context, path domain.TaskPath) (ports.ArtifactStore, error) {
	inner, err := d.next.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return artifact.NewStore(d.wrap(inner)), nil
}

func (d *blobWrapper) Tasks(ctx context.Context, flow, run, step string) ([]string, error) {
	return d.next.Tasks(ctx, flow, run, step)
}

func (d *blobWrapper) Runs(ctx context.Context, flow string) ([]string, error) {
	return d.next.Runs(ctx, flow)
}
