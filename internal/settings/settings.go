// Package settings loads the ambient configuration of flowgraph: defaults, then
// a YAML file, then FLOWGRAPH_* environment variables.
package settings

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLOWGRAPH_"

// EnvConfigFile points to an alternative settings file.
const EnvConfigFile = EnvPrefix + "CONFIG"

// DefaultSysroot is where local runs and settings live.
const DefaultSysroot = ".flowgraph"

// Settings are the process-wide knobs of the engine and CLI.
type Settings struct {
	IncludeForeachStack  bool   `mapstructure:"include_foreach_stack" yaml:"include_foreach_stack"`
	MaxForeachValueChars int    `mapstructure:"max_foreach_value_chars" yaml:"max_foreach_value_chars"`
	Datastore            string `mapstructure:"datastore" yaml:"datastore"`
	DatastoreSysroot     string `mapstructure:"datastore_sysroot_local" yaml:"datastore_sysroot_local"`
	RedisAddr            string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix          string `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	SQLitePath           string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	LogLevel             string `mapstructure:"log_level" yaml:"log_level"`
	MetricsAddr          string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	// EncryptionKey is a base64 AES-256 key. When set, artifacts are encrypted at rest.
	EncryptionKey          string   `mapstructure:"encryption_key" yaml:"encryption_key"`
	EncryptionFallbackKeys []string `mapstructure:"encryption_fallback_keys" yaml:"encryption_fallback_keys"`
	// RedactPatterns are regular expressions of artifact names masked by the inspection servers.
	RedactPatterns []string `mapstructure:"redact_patterns" yaml:"redact_patterns"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		IncludeForeachStack:  true,
		MaxForeachValueChars: 30,
		Datastore:            "local",
		DatastoreSysroot:     DefaultSysroot,
		RedisAddr:            "localhost:6379",
		RedisPrefix:          "flowgraph:",
		SQLitePath:           filepath.Join(DefaultSysroot, "flowgraph.db"),
		LogLevel:             "info",
		MetricsAddr:          ":9090",
	}
}

// Load resolves settings from path (or the default locations when empty) and the environment.
// A missing default file is not an error; a missing explicit file is.
func Load(path string) (Settings, error) {
	return load(path, os.Environ())
}

func load(path string, environ []string) (Settings, error) {
	s := Default()
	explicit := path != ""
	if !explicit {
		path = lookupEnv(environ, EnvConfigFile)
		explicit = path != ""
	}
	if !explicit {
		path = filepath.Join(DefaultSysroot, "config.yaml")
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return s, fmt.Errorf("failed to read settings %s: %w", path, err)
	default:
		var fromFile map[string]any
		if err := yaml.Unmarshal(raw, &fromFile); err != nil {
			return s, fmt.Errorf("failed to parse settings %s: %w", path, err)
		}
		if err := decode(fromFile, &s); err != nil {
			return s, fmt.Errorf("invalid settings in %s: %w", path, err)
		}
	}

	fromEnv := make(map[string]any)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) || key == EnvConfigFile {
			continue
		}
		fromEnv[strings.ToLower(strings.TrimPrefix(key, EnvPrefix))] = value
	}
	if err := decode(fromEnv, &s); err != nil {
		return s, fmt.Errorf("invalid settings in environment: %w", err)
	}
	return s, nil
}

func decode(in map[string]any, out *Settings) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func lookupEnv(environ []string, key string) string {
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v
		}
	}
	return ""
}

// EncryptionKeys decodes the active and fallback keys. active is nil when
// encryption is off.
func (s Settings) EncryptionKeys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = base64.StdEncoding.DecodeString(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("invalid encryption_key: %w", err)
	}
	for i, k := range s.EncryptionFallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid encryption_fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}
