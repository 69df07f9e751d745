package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Store adds encoding and passdown on top of a BlobStore.
type Store struct {
	ports.BlobStore
}

var _ ports.ArtifactStore = (*Store)(nil)

// NewStore wraps raw task storage.
func NewStore(blobs ports.BlobStore) *Store {
	return &Store{BlobStore: blobs}
}

func (s *Store) Load(ctx context.Context, name string) (any, error) {
	blob, err := s.LoadBlob(ctx, name)
	if err != nil {
		return nil, err
	}
	return Decode(blob)
}

func (s *Store) Save(ctx context.Context, name string, value any) error {
	blob, err := Encode(value)
	if err != nil {
		return fmt.Errorf("artifact %q: %w", name, err)
	}
	return s.SaveBlob(ctx, name, blob)
}

func (s *Store) Has(ctx context.Context, name string) (bool, error) {
	_, err := s.LoadBlob(ctx, name)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Passdown reads every named blob before writing any of them, so a failing
// read leaves this store untouched.
func (s *Store) Passdown(ctx context.Context, from ports.BlobStore, names []string) error {
	blobs := make([]domain.Blob, len(names))
	for i, name := range names {
		blob, err := from.LoadBlob(ctx, name)
		if err != nil {
			return fmt.Errorf("passdown %q: %w", name, err)
		}
		blobs[i] = blob
	}
	for i, name := range names {
		if err := s.SaveBlob(ctx, name, blobs[i]); err != nil {
			return fmt.Errorf("passdown %q: %w", name, err)
		}
	}
	return nil
}
