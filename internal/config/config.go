// Package config loads evmnorm settings from a YAML file and EVMNORM_*
// environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"evmnorm/internal/normalize"
)

// DefaultMaxInputBytes bounds the decoded bytecode size (1 MiB).
const DefaultMaxInputBytes = 1 << 20

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config represents configuration for the evmnorm tool
type Config struct {
	Normalize     normalize.Config `json:"normalize" yaml:"normalize" jsonschema:"title=Normalization,description=Normalizer steps"`
	MaxInputBytes int              `json:"max_input_bytes" yaml:"max_input_bytes" jsonschema:"title=Max Input Bytes,description=Largest accepted decoded bytecode,minimum=1,default=1048576"`
	Workers       int              `json:"workers" yaml:"workers" jsonschema:"title=Workers,description=Concurrent batch workers (0 = one per CPU),minimum=0"`
	CacheSize     int              `json:"cache_size" yaml:"cache_size" jsonschema:"title=Cache Size,description=Result cache entries (0 disables the cache),minimum=0"`
	LogLevel      string           `json:"log_level" yaml:"log_level" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	MetricsFile   string           `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty" jsonschema:"title=Metrics File,description=Write batch metrics here in prometheus text format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Normalize:     normalize.DefaultConfig(),
		MaxInputBytes: DefaultMaxInputBytes,
		CacheSize:     1024,
		LogLevel:      "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from EVMNORM_* variables found by lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"EVMNORM_MAX_INPUT", &c.MaxInputBytes},
		{"EVMNORM_WORKERS", &c.Workers},
		{"EVMNORM_CACHE_SIZE", &c.CacheSize},
	}
	for _, e := range ints {
		if v, ok := lookup(e.key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalid, e.key, err)
			}
			*e.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"EVMNORM_REMOVE_METADATA", &c.Normalize.RemoveMetadata},
		{"EVMNORM_REMOVE_NOPS", &c.Normalize.RemoveNops},
		{"EVMNORM_NORMALIZE_CONSTANTS", &c.Normalize.NormalizeConstants},
	}
	for _, e := range bools {
		if v, ok := lookup(e.key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalid, e.key, err)
			}
			*e.dst = b
		}
	}

	if v, ok := lookup("EVMNORM_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("EVMNORM_METRICS_FILE"); ok {
		c.MetricsFile = v
	}
	return nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	switch {
	case c.MaxInputBytes <= 0:
		return fmt.Errorf("%w: max_input_bytes must be positive, got %d", ErrInvalid, c.MaxInputBytes)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Workers)
	case c.CacheSize < 0:
		return fmt.Errorf("%w: cache_size must not be negative, got %d", ErrInvalid, c.CacheSize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

// WorkerCount resolves Workers, 0 meaning one per CPU.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	// inline: normalize.Config would collide with Config in $defs
	reflector := &jsonschema.Reflector{DoNotReference: true}
	bts, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return bts, nil
}
