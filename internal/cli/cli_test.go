package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/internal/settings"
	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	got, err := ParseParams([]string{"alpha=0.5", "n=3", "flag=true", "name=hello world", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"alpha": 0.5,
		"n":     3,
		"flag":  true,
		"name":  "hello world",
		"empty": "",
	}, got)

	_, err = ParseParams([]string{"novalue"})
	assert.Error(t, err)
}

func TestParseConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model:\n  name: m1\n"), 0644))

	got, err := ParseConfigs([]string{"settings=" + path})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"model": map[string]any{"name": "m1"}}, got["settings"])

	merged := MergeOptions(map[string]any{"settings": "x", "alpha": 1}, got)
	assert.Equal(t, 1, merged["alpha"])
	assert.Equal(t, got["settings"], merged["settings"])
}

func TestWriteValue(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteValue(&buf, map[string]any{"flow": "F"}, "yaml"))
	assert.Equal(t, "flow: F\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteValue(&buf, map[string]any{"flow": "F"}, "json"))
	assert.JSONEq(t, `{"flow":"F"}`, buf.String())

	assert.Error(t, WriteValue(&buf, nil, "toml"))
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNop()

	s := settings.Default()
	s.Datastore = "local"
	s.DatastoreSysroot = t.TempDir()
	b, err := OpenBackend(ctx, s, logger)
	require.NoError(t, err)
	store, err := b.Datastore.Open(ctx, domain.TaskPath{Flow: "F", Run: "r", Step: "start", Task: "1"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "x", 1))
	assert.NoError(t, b.Close())

	s.Datastore = "sqlite"
	s.SQLitePath = filepath.Join(t.TempDir(), "fg.db")
	b, err = OpenBackend(ctx, s, logger)
	require.NoError(t, err)
	assert.NoError(t, b.Close())

	s.Datastore = "memory"
	b, err = OpenBackend(ctx, s, logger)
	require.NoError(t, err)
	assert.NotNil(t, b.Locker)

	s.Datastore = "memory"
	s.EncryptionKey = "not base64!"
	_, err = OpenBackend(ctx, s, logger)
	assert.ErrorContains(t, err, "invalid encryption_key")
	s.EncryptionKey = ""

	s.Datastore = "cassandra"
	_, err = OpenBackend(ctx, s, logger)
	assert.ErrorContains(t, err, "unknown datastore")
}

func TestOpenBackend_Encrypted(t *testing.T) {
	ctx := context.Background()
	s := settings.Default()
	s.Datastore = "local"
	s.DatastoreSysroot = t.TempDir()
	s.EncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	path := domain.TaskPath{Flow: "F", Run: "r", Step: "start", Task: "1"}

	b, err := OpenBackend(ctx, s, logging.NewNop())
	require.NoError(t, err)
	store, err := b.Datastore.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "secret", "plain text"))
	v, err := store.Load(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "plain text", v)

	s.EncryptionKey = ""
	b, err = OpenBackend(ctx, s, logging.NewNop())
	require.NoError(t, err)
	store, err = b.Datastore.Open(ctx, path)
	require.NoError(t, err)
	blob, err := store.LoadBlob(ctx, "secret")
	require.NoError(t, err)
	assert.NotContains(t, string(blob.Data), "plain text")
}

type stubInspector struct {
	ports.Inspector
	ds ports.Datastore
}

func (s stubInspector) Datastore() ports.Datastore { return s.ds }

func TestRedacted(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDatastore()
	path := domain.TaskPath{Flow: "F", Run: "r", Step: "start", Task: "1"}
	store, err := ds.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "token", "abc"))

	insp := stubInspector{ds: ds}
	same, err := Redacted(insp, nil)
	require.NoError(t, err)
	assert.Equal(t, insp, same)

	red, err := Redacted(insp, []string{"token"})
	require.NoError(t, err)
	store, err = red.Datastore().Open(ctx, path)
	require.NoError(t, err)
	v, err := store.Load(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "***", v)
}
