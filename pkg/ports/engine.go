package ports

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Inspector exposes read-only introspection of a flow to outer adapters (HTTP, MCP).
type Inspector interface {
	// Info returns the persisted graph record.
	Info(ctx context.Context) (*domain.GraphInfo, error)

	// Nodes returns the derived graph in declaration order.
	Nodes() []*domain.StepNode

	// Datastore returns the store runs are persisted to.
	Datastore() Datastore
}
