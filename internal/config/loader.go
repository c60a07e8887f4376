package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// EnvPrefix prefixes every environment override.
const EnvPrefix = "UNIPOP_"

// Loader builds a Config from defaults, a YAML file and the environment.
type Loader struct {
	path   string
	lookup func(string) (string, bool)
}

// NewLoader creates a loader for path. An empty path skips the file layer.
func NewLoader(path string) *Loader {
	return &Loader{path: path, lookup: os.LookupEnv}
}

// WithLookup overrides the environment lookup, mainly for tests.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookup = lookup
	return l
}

// Path returns the YAML file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load applies every layer and validates the result.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "defaults")

	if l.path != "" {
		if err := loadFile(l.path, cfg); err != nil {
			return nil, err
		}
		cfg.LoadedFrom = append(cfg.LoadedFrom, l.path)
	}

	if err := l.loadEnvironment(cfg); err != nil {
		return nil, err
	}
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is a shorthand for NewLoader(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadEnvironment overlays UNIPOP_* variables.
func (l *Loader) loadEnvironment(cfg *Config) error {
	strs := map[string]*string{
		"BACKEND_KIND":          &cfg.Backend.Kind,
		"BACKEND_INDEX":         &cfg.Backend.Index,
		"BACKEND_VISIBILITY":    &cfg.Backend.Visibility,
		"BADGER_PATH":           &cfg.Badger.Path,
		"DYNAMODB_REGION":       &cfg.DynamoDB.Region,
		"DYNAMODB_ENDPOINT":     &cfg.DynamoDB.Endpoint,
		"DYNAMODB_TABLE_PREFIX": &cfg.DynamoDB.TablePrefix,
		"LOG_LEVEL":             &cfg.Logging.Level,
		"METRICS_NAMESPACE":     &cfg.Metrics.Namespace,
		"TRACING_ENDPOINT":      &cfg.Tracing.Endpoint,
		"TRACING_SERVICE_NAME":  &cfg.Tracing.ServiceName,
		"SERVER_ADDR":           &cfg.Server.Addr,
	}
	for name, target := range strs {
		if v, ok := l.lookup(EnvPrefix + name); ok {
			*target = v
		}
	}

	if v, ok := l.lookup(EnvPrefix + "ENVIRONMENT"); ok {
		cfg.Environment = Environment(v)
	}

	bools := map[string]*bool{
		"BADGER_IN_MEMORY":        &cfg.Badger.InMemory,
		"CIRCUIT_BREAKER_ENABLED": &cfg.Resilience.CircuitBreaker.Enabled,
		"METRICS_ENABLED":         &cfg.Metrics.Enabled,
		"TRACING_ENABLED":         &cfg.Tracing.Enabled,
	}
	for name, target := range bools {
		v, ok := l.lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*target = b
	}

	ints := map[string]*int{
		"BACKEND_PAGE_SIZE":  &cfg.Backend.PageSize,
		"RETRY_MAX_ATTEMPTS": &cfg.Resilience.Retry.MaxAttempts,
	}
	for name, target := range ints {
		v, ok := l.lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*target = n
	}

	durations := map[string]*time.Duration{
		"LOG_SLOW_THRESHOLD": &cfg.Logging.SlowThreshold,
	}
	for name, target := range durations {
		v, ok := l.lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*target = d
	}

	if v, ok := l.lookup(EnvPrefix + "TRACING_SAMPLE_RATE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTRACING_SAMPLE_RATE: %w", EnvPrefix, err)
		}
		cfg.Tracing.SampleRate = f
	}
	return nil
}
