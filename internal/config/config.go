// Package config loads and validates the service configuration.
//
// Values are layered, lowest priority first: built-in defaults, an optional
// YAML file, then UNIPOP_* environment variables. The result is validated
// with struct tags before use. A Watcher can reload the file at runtime and
// hand the new snapshot to subscribers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/ozadari/unipop/internal/errors"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendDynamoDB = "dynamodb"
)

// Config is the complete service configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"required,oneof=development staging production"`
	Backend     Backend     `yaml:"backend"`
	Badger      Badger      `yaml:"badger"`
	DynamoDB    DynamoDB    `yaml:"dynamodb"`
	Resilience  Resilience  `yaml:"resilience"`
	Logging     Logging     `yaml:"logging"`
	Metrics     Metrics     `yaml:"metrics"`
	Tracing     Tracing     `yaml:"tracing"`
	Server      Server      `yaml:"server"`

	// LoadedFrom lists the sources applied, in order.
	LoadedFrom []string `yaml:"-"`
}

// Backend selects the document store and the query settings shared by every
// query. Only Index, PageSize and Visibility are hot-reloadable.
type Backend struct {
	Kind       string `yaml:"kind" validate:"required,oneof=memory badger dynamodb"`
	Index      string `yaml:"index" validate:"required,excludesall=/"`
	PageSize   int    `yaml:"page_size" validate:"min=1,max=10000"`
	Visibility string `yaml:"visibility" validate:"oneof=committed refresh"`
}

// Badger configures the embedded store.
type Badger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// DynamoDB configures the AWS store.
type DynamoDB struct {
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint" validate:"omitempty,url"`
	TablePrefix string `yaml:"table_prefix"`
}

// Resilience configures the backend client decorators.
type Resilience struct {
	Retry          Retry          `yaml:"retry"`
	CircuitBreaker CircuitBreaker `yaml:"circuit_breaker"`
}

// Retry configures retries of idempotent reads.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"gtefield=BaseDelay"`
}

// CircuitBreaker configures the breaker in front of the backend.
type CircuitBreaker struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" validate:"min=1"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" validate:"min=1"`
}

// Logging configures zap.
type Logging struct {
	Level         string        `yaml:"level" validate:"oneof=debug info warn error"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// Metrics configures the Prometheus collector.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace" validate:"required_if=Enabled true"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint" validate:"required_if=Enabled true"`
	ServiceName string  `yaml:"service_name" validate:"required"`
	SampleRate  float64 `yaml:"sample_rate" validate:"min=0,max=1"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Backend: Backend{
			Kind:       BackendMemory,
			Index:      "edges",
			PageSize:   100,
			Visibility: "committed",
		},
		Badger: Badger{Path: "data/badger"},
		DynamoDB: DynamoDB{
			Region:      "us-east-1",
			TablePrefix: "unipop-",
		},
		Resilience: Resilience{
			Retry: Retry{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    2 * time.Second,
			},
			CircuitBreaker: CircuitBreaker{
				Enabled:          true,
				MaxRequests:      5,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.6,
				MinRequests:      5,
			},
		},
		Logging: Logging{Level: "info", SlowThreshold: 500 * time.Millisecond},
		Metrics: Metrics{Enabled: true, Namespace: "unipop"},
		Tracing: Tracing{ServiceName: "unipop", SampleRate: 0.1},
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

var validate = validator.New()

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return invalidConfig(describe(err))
	}
	if c.Backend.Kind == BackendBadger && !c.Badger.InMemory && c.Badger.Path == "" {
		return invalidConfig("badger.path is required unless badger.in_memory is set")
	}
	if c.Backend.Kind == BackendDynamoDB && c.DynamoDB.Region == "" {
		return invalidConfig("dynamodb.region is required for the dynamodb backend")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func invalidConfig(details string) error {
	return apperrors.NewError(apperrors.ErrorTypeValidation, apperrors.CodeInvalidConfig, "invalid configuration").
		WithDetails(details).
		Build()
}

// describe flattens validator errors into one readable line.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
