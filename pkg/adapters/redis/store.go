package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// farFuture is the index score for entries that never expire (2100-01-01).
const farFuture = 4102444800

// Datastore implements ports.Datastore using Redis.
//
// Each task keeps two hashes, "<prefix>task:<path>:data" and "<prefix>task:<path>:fp",
// keyed by artifact name. Sorted sets index the tasks of a step and the runs of a flow.
type Datastore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

var _ ports.Datastore = (*Datastore)(nil)

type Option func(*Datastore)

// WithTTL sets the expiration for task artifacts.
func WithTTL(ttl time.Duration) Option {
	return func(d *Datastore) {
		d.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(d *Datastore) {
		d.prefix = prefix
	}
}

// New creates a new Redis datastore with options.
func New(address, password string, db int, opts ...Option) *Datastore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis datastore from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Datastore {
	d := &Datastore{
		client: client,
		prefix: "flowgraph:",
		ttl:    0, // No expiration by default
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Datastore) taskKey(path domain.TaskPath) string {
	return d.prefix + "task:" + path.String()
}

func (d *Datastore) tasksKey(flow, run, step string) string {
	return d.prefix + "tasks:" + flow + "/" + run + "/" + step
}

func (d *Datastore) runsKey(flow string) string {
	return d.prefix + "runs:" + flow
}

func (d *Datastore) score() float64 {
	if d.ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(d.ttl).Unix())
}

// Open registers the task in the indexes and returns its store.
func (d *Datastore) Open(ctx context.Context, path domain.TaskPath) (ports.ArtifactStore, error) {
	pipe := d.client.Pipeline()
	score := d.score()
	pipe.ZAdd(ctx, d.tasksKey(path.Flow, path.Run, path.Step), backend.Z{Score: score, Member: path.Task})
	pipe.ZAdd(ctx, d.runsKey(path.Flow), backend.Z{Score: score, Member: path.Run})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to index task in redis: %w", err)
	}
	return artifact.NewStore(&taskStore{ds: d, path: path, key: d.taskKey(path)}), nil
}

// Tasks lists the task ids of a step, pruning expired entries first.
func (d *Datastore) Tasks(ctx context.Context, flow, run, step string) ([]string, error) {
	ids, err := d.members(ctx, d.tasksKey(flow, run, step))
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
	return d.members(ctx, d.runsKey(flow))
}

func (d *Datastore) members(ctx context.Context, key string) ([]string, error) {
	// Lazy cleanup of expired index entries
	now := float64(time.Now().Unix())
	if err := d.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired entries: %w", err)
	}
	ids, err := d.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", key, err)
	}
	return ids, nil
}

// Close closes the redis client.
func (d *Datastore) Close() error {
	return d.client.Close()
}

type taskStore struct {
	ds   *Datastore
	path domain.TaskPath
	key  string
}

func (s *taskStore) Items(ctx context.Context) ([]domain.ArtifactRecord, error) {
	fps, err := s.ds.client.HGetAll(ctx, s.key+":fp").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	items := make([]domain.ArtifactRecord, 0, len(fps))
	for name, fp := range fps {
		items = append(items, domain.ArtifactRecord{Name: name, Branch: s.path.String(), Fingerprint: fp})
	}
	return items, nil
}

func (s *taskStore) LoadBlob(ctx context.Context, name string) (domain.Blob, error) {
	pipe := s.ds.client.Pipeline()
	data := pipe.HGet(ctx, s.key+":data", name)
	fp := pipe.HGet(ctx, s.key+":fp", name)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return domain.Blob{}, fmt.Errorf("failed to get from redis: %w", err)
	}

	raw, err := data.Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.Blob{}, domain.ErrArtifactNotFound
	}
	if err != nil {
		return domain.Blob{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	sum, err := fp.Result()
	if err != nil {
		// Data without fingerprint: recompute
		sum = artifact.Fingerprint(raw)
	}
	return domain.Blob{Fingerprint: sum, Data: raw}, nil
}

func (s *taskStore) SaveBlob(ctx context.Context, name string, blob domain.Blob) error {
	pipe := s.ds.client.TxPipeline()
	pipe.HSet(ctx, s.key+":data", name, blob.Data)
	pipe.HSet(ctx, s.key+":fp", name, blob.Fingerprint)
	if s.ds.ttl > 0 {
		pipe.Expire(ctx, s.key+":data", s.ds.ttl)
		pipe.Expire(ctx, s.key+":fp", s.ds.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}
