package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

const ext = ".json"

// Datastore implements ports.Datastore using the local filesystem.
// Each task is a directory <base>/<flow>/<run>/<step>/<task> holding one JSON file per artifact.
type Datastore struct {
	BasePath string
}

var _ ports.Datastore = (*Datastore)(nil)

// New creates a new Datastore with the given base path.
// If basePath is empty, it defaults to ".flowgraph".
func New(basePath string) *Datastore {
	if basePath == "" {
		basePath = ".flowgraph"
	}
	return &Datastore{BasePath: basePath}
}

// Open returns the store of one task, creating its directory if needed.
func (d *Datastore) Open(ctx context.Context, path domain.TaskPath) (ports.ArtifactStore, error) {
	for _, part := range []string{path.Flow, path.Run, path.Step, path.Task} {
		if err := validSegment(part); err != nil {
			return nil, err
		}
	}
	dir := filepath.Join(d.BasePath, path.Flow, path.Run, path.Step, path.Task)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure task directory: %w", err)
	}
	return artifact.NewStore(&taskStore{dir: dir, branch: path.String()}), nil
}

// Tasks lists the task ids of a step in a run.
func (d *Datastore) Tasks(ctx context.Context, flow, run, step string) ([]string, error) {
	ids, err := listDirs(filepath.Join(d.BasePath, flow, run, step))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domain.ErrTaskNotFound
	}
	return ids, nil
}

// Runs lists the run ids recorded for a flow.
func (d *Datastore) Runs(ctx context.Context, flow string) ([]string, error) {
	return listDirs(filepath.Join(d.BasePath, flow))
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid path segment %q", s)
	}
	return nil
}

type taskStore struct {
	dir    string
	branch string
}

func (s *taskStore) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var items []domain.ArtifactRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext || strings.HasPrefix(entry.Name(), "tmp-") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		blob, err := s.LoadBlob(ctx, name)
		if err != nil {
			return nil, err
		}
		items = append(items, domain.ArtifactRecord{Name: name, Branch: s.branch, Fingerprint: blob.Fingerprint})
	}
	return items, nil
}

func (s *taskStore) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	if err := validSegment(name); err != nil {
		return domain.Blob{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name+ext))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Blob{}, domain.ErrArtifactNotFound
		}
		return domain.Blob{}, fmt.Errorf("failed to read artifact file: %w", err)
	}

	var blob domain.Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return domain.Blob{}, fmt.Errorf("failed to unmarshal artifact %q: %w", name, err)
	}
	return blob, nil
}

// SaveBlob persists the artifact atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *taskStore) SaveBlob(ctx context.Context, name string, blob domain.Blob) (err error) {
	if err := validSegment(name); err != nil {
		return err
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	// Same directory so the rename stays on one filesystem
	tmpFile, err := os.CreateTemp(s.dir, "tmp-"+name+"-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := filepath.Join(s.dir, name+ext)
	if err := os.Rename(tmpPath, destPath); err != nil {
		// Windows refuses to overwrite on rename
		if rmErr := os.Remove(destPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("failed to replace artifact file: %w", rmErr)
		}
		if err := os.Rename(tmpPath, destPath); err != nil {
			return fmt.Errorf("failed to rename temp file: %w", err)
		}
	}
	return nil
}
