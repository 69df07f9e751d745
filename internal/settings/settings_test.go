package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	s, err := load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
	assert.True(t, s.IncludeForeachStack)
	assert.Equal(t, 30, s.MaxForeachValueChars)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "config.yaml", `
datastore: redis
max_foreach_value_chars: 12
include_foreach_stack: false
`)
	s, err := load(path, []string{
		"FLOWGRAPH_DATASTORE=sqlite",
		"FLOWGRAPH_LOG_LEVEL=debug",
		"OTHER=ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Datastore, "environment wins over the file")
	assert.Equal(t, 12, s.MaxForeachValueChars)
	assert.False(t, s.IncludeForeachStack)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "flowgraph:", s.RedisPrefix)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	path := writeFile(t, "custom.yaml", "redis_prefix: \"x:\"\n")
	s, err := load("", []string{EnvConfigFile + "=" + path, "FLOWGRAPH_MAX_FOREACH_VALUE_CHARS=5"})
	require.NoError(t, err)
	assert.Equal(t, "x:", s.RedisPrefix)
	assert.Equal(t, 5, s.MaxForeachValueChars, "strings decode weakly")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := load("", []string{"FLOWGRAPH_MAX_FOREACH_VALUE_CHARS=many"})
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	want := map[string]any{
		"name":    "train",
		"epochs":  10,
		"rate":    0.5,
		"enabled": true,
		"tags":    []any{"a", "b"},
		"resources": map[string]any{
			"cpu": 4,
		},
	}

	hcl := writeFile(t, "c.hcl", `
name    = "train"
epochs  = 10
rate    = 0.5
enabled = true
tags    = ["a", "b"]
resources = {
  cpu = 4
}
`)
	got, err := LoadConfigFile(hcl)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	yml := writeFile(t, "c.yaml", `
name: train
epochs: 10
rate: 0.5
enabled: true
tags: [a, b]
resources:
  cpu: 4
`)
	got, err = LoadConfigFile(yml)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	js := writeFile(t, "c.json", `{"name": "train", "resources": {"cpu": 4}}`)
	got, err = LoadConfigFile(js)
	require.NoError(t, err)
	assert.Equal(t, "train", got["name"])
	assert.Equal(t, map[string]any{"cpu": 4.0}, got["resources"])

	_, err = LoadConfigFile(writeFile(t, "c.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported")
}

func TestParseConfigOption(t *testing.T) {
	path := writeFile(t, "c.yaml", "a: 1\n")
	name, doc, err := ParseConfigOption("my-config=" + path)
	require.NoError(t, err)
	assert.Equal(t, "my-config", name)
	assert.Equal(t, map[string]any{"a": 1}, doc)

	_, _, err = ParseConfigOption("missing-path")
	assert.Error(t, err)
}

func TestEncryptionKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	active := "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	s, err := load("", []string{
		"FLOWGRAPH_ENCRYPTION_KEY=" + active,
		"FLOWGRAPH_ENCRYPTION_FALLBACK_KEYS=" + active + "," + active,
		"FLOWGRAPH_REDACT_PATTERNS=token,password",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"token", "password"}, s.RedactPatterns)

	key, fallback, err := s.EncryptionKeys()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), key)
	assert.Len(t, fallback, 2)

	key, _, err = Default().EncryptionKeys()
	require.NoError(t, err)
	assert.Nil(t, key)

	_, _, err = Settings{EncryptionKey: "%%%"}.EncryptionKeys()
	assert.ErrorContains(t, err, "invalid encryption_key")
}
