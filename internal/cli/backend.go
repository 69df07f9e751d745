package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/flowgraph/internal/settings"
	"github.com/aretw0/flowgraph/pkg/adapters/file"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/adapters/redis"
	"github.com/aretw0/flowgraph/pkg/adapters/sqlite"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/ports"
	goredis "github.com/redis/go-redis/v9"
)

// Backend is the storage selected by the settings.
type Backend struct {
	Datastore ports.Datastore
	// Locker is nil for backends that are private to the process.
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases connections held by the backend.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend creates the datastore (and locker) named by s.Datastore:
// memory, local, redis or sqlite. Artifacts are encrypted at rest when an
// encryption key is configured.
func OpenBackend(ctx context.Context, s settings.Settings, logger *slog.Logger) (*Backend, error) {
	active, fallback, err := s.EncryptionKeys()
	if err != nil {
		return nil, err
	}
	var encrypt middleware.Middleware
	if active != nil {
		if encrypt, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}); err != nil {
			return nil, err
		}
	}

	b, err := openBackend(ctx, s, logger)
	if err != nil {
		return nil, err
	}
	if encrypt != nil {
		logger.Debug("Encrypting artifacts at rest", "fallback_keys", len(fallback))
		b.Datastore = encrypt(b.Datastore)
	}
	return b, nil
}

func openBackend(ctx context.Context, s settings.Settings, logger *slog.Logger) (*Backend, error) {
	switch s.Datastore {
	case "memory":
		return &Backend{Datastore: memory.NewDatastore(), Locker: memory.NewLocker()}, nil
	case "local", "":
		logger.Debug("Using local datastore", "sysroot", s.DatastoreSysroot)
		return &Backend{Datastore: file.New(filepath.Join(s.DatastoreSysroot, "runs"))}, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: s.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", s.RedisAddr, err)
		}
		logger.Debug("Using redis datastore", "addr", s.RedisAddr, "prefix", s.RedisPrefix)
		return &Backend{
			Datastore: redis.NewFromClient(rdb, redis.WithPrefix(s.RedisPrefix)),
			Locker:    redis.NewLocker(rdb, s.RedisPrefix),
			close:     rdb.Close,
		}, nil
	case "sqlite":
		ds, err := sqlite.Open(ctx, s.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using sqlite datastore", "path", s.SQLitePath)
		return &Backend{Datastore: ds, close: ds.Close}, nil
	default:
		return nil, fmt.Errorf("unknown datastore %q (expected memory, local, redis or sqlite)", s.Datastore)
	}
}

type redactedInspector struct {
	ports.Inspector
	datastore ports.Datastore
}

func (r *redactedInspector) Datastore() ports.Datastore { return r.datastore }

// Redacted masks the artifacts matching patterns for everything served from insp.
// insp is returned as is when there are no patterns.
func Redacted(insp ports.Inspector, patterns []string) (ports.Inspector, error) {
	if len(patterns) == 0 {
		return insp, nil
	}
	mw, err := middleware.NewRedactionMiddleware(patterns)
	if err != nil {
		return nil, err
	}
	return &redactedInspector{Inspector: insp, datastore: mw(insp.Datastore())}, nil
}
