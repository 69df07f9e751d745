package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Datastore is a ports.Datastore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
//
// Open is a convenience that does this for file paths.
type Datastore struct {
	db *sql.DB
}

var _ ports.Datastore = (*Datastore)(nil)

// New initializes the required schema in the given database and returns a Datastore.
func New(ctx context.Context, db *sql.DB) (*Datastore, error) {
	d := &Datastore{db: db}
	if err := d.initSchema(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Datastore) initSchema(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			flow TEXT NOT NULL,
			run TEXT NOT NULL,
			step TEXT NOT NULL,
			task TEXT NOT NULL,
			PRIMARY KEY (flow, run, step, task)
		);
		CREATE TABLE IF NOT EXISTS artifacts (
			flow TEXT NOT NULL,
			run TEXT NOT NULL,
			step TEXT NOT NULL,
			task TEXT NOT NULL,
			name TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			data BLOB,
			PRIMARY KEY (flow, run, step, task, name)
		);`,
	)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

// Open registers the task and returns its store.
func (d *Datastore) Open(ctx context.Context, path domain.TaskPath) (ports.ArtifactStore, error) {
	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO tasks (flow, run, step, task) VALUES (?, ?, ?, ?)`,
		path.Flow, path.Run, path.Step, path.Task,
	)
	if err != nil {
		return nil, fmt.Errorf("register task %s: %w", path, err)
	}
	return artifact.NewStore(&taskStore{db: d.db, path: path}), nil
}

// Tasks lists the task ids of a step in a run.
func (d *Datastore) Tasks(ctx context.Context, flow, run, step string) ([]string, error) {
	ids, err := d.strings(ctx, `
		SELECT task FROM tasks WHERE flow = ? AND run = ? AND step = ? ORDER BY task`,
		flow, run, step,
	)
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
	return d.strings(ctx, `SELECT DISTINCT run FROM tasks WHERE flow = ? ORDER BY run`, flow)
}

func (d *Datastore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type taskStore struct {
	db   *sql.DB
	path domain.TaskPath
}

func (s *taskStore) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, fingerprint FROM artifacts
		WHERE flow = ? AND run = ? AND step = ? AND task = ?
		ORDER BY name`,
		s.path.Flow, s.path.Run, s.path.Step, s.path.Task,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ArtifactRecord
	for rows.Next() {
		rec := domain.ArtifactRecord{Branch: s.path.String()}
		if err := rows.Scan(&rec.Name, &rec.Fingerprint); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (s *taskStore) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	var blob domain.Blob
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, data FROM artifacts
		WHERE flow = ? AND run = ? AND step = ? AND task = ? AND name = ?`,
		s.path.Flow, s.path.Run, s.path.Step, s.path.Task, name,
	).Scan(&blob.Fingerprint, &blob.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Blob{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Blob{}, err
	}
	return blob, nil
}

func (s *taskStore) SaveBlob(ctx context.Context, name string, blob domain.Blob) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (flow, run, step, task, name, fingerprint, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (flow, run, step, task, name)
		DO UPDATE SET fingerprint = excluded.fingerprint, data = excluded.data`,
		s.path.Flow, s.path.Run, s.path.Step, s.path.Task, name, blob.Fingerprint, blob.Data,
	)
	return err
}
