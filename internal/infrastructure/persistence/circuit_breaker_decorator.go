package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// ============================================================================
// CIRCUIT BREAKER DECORATOR - Fails fast while the backend is unhealthy
// ============================================================================

// CircuitBreakerConfig configures the breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Requests allowed through while half-open
	Interval         time.Duration // Closed-state window after which counts reset
	Timeout          time.Duration // Open-state duration before probing
	FailureThreshold float64       // Failure ratio that trips the breaker
	MinRequests      uint32        // Requests needed before the ratio is evaluated
}

// DefaultCircuitBreakerConfig returns the defaults used by the service.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreakerClient guards every backend call with a gobreaker circuit.
// Outcomes that say nothing about backend health (conflicts, caller errors,
// unsupported requests) do not count as failures.
type CircuitBreakerClient struct {
	inner  repository.DocumentClient
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
}

// NewCircuitBreakerClient wraps inner.
func NewCircuitBreakerClient(inner repository.DocumentClient, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("circuit_breaker")

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: countsAsSuccess,
	})

	return &CircuitBreakerClient{inner: inner, cb: cb, name: config.Name, logger: logger}
}

// countsAsSuccess reports whether err leaves the backend's health untouched.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, repository.ErrConflict) || errors.Is(err, context.Canceled) {
		return true
	}
	switch apperrors.CodeOf(err) {
	case apperrors.CodeElementNotFound,
		apperrors.CodeEdgeAlreadyExists,
		apperrors.CodeUnsupportedPredicate,
		apperrors.CodeUnsupportedAggregation,
		apperrors.CodeInvalidInput:
		return true
	}
	return false
}

// State returns the current breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// execute runs fn through the breaker and maps rejections to a retryable
// BACKEND_UNAVAILABLE.
func (c *CircuitBreakerClient) execute(operation string, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Debug("Circuit breaker rejected request",
			zap.String("breaker", c.name),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return apperrors.NewError(apperrors.ErrorTypeUnavailable, apperrors.CodeBackendUnavailable, "document backend unavailable").
			WithOperation(operation).
			WithResource(c.name).
			WithDetails("circuit breaker: " + err.Error()).
			WithCause(err).
			WithRetryable(true).
			Build()
	}
	return err
}

// LookupMany guards the batched fetch.
func (c *CircuitBreakerClient) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	var result []repository.Record
	err := c.execute("LookupMany", func() error {
		var err error
		result, err = c.inner.LookupMany(ctx, index, ids, visibility)
		return err
	})
	return result, err
}

// Search guards a page request.
func (c *CircuitBreakerClient) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	var result repository.SearchPage
	err := c.execute("Search", func() error {
		var err error
		result, err = c.inner.Search(ctx, req)
		return err
	})
	return result, err
}

// Create guards the conditional write.
func (c *CircuitBreakerClient) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	return c.execute("Create", func() error {
		return c.inner.Create(ctx, index, record, visibility)
	})
}

// Aggregate guards the aggregation request.
func (c *CircuitBreakerClient) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	var result map[string]any
	err := c.execute("Aggregate", func() error {
		var err error
		result, err = c.inner.Aggregate(ctx, index, f, spec, visibility)
		return err
	})
	return result, err
}

// ReleaseCursor bypasses the breaker; releasing is best effort and must
// not be blocked by an open circuit.
func (c *CircuitBreakerClient) ReleaseCursor(ctx context.Context, cursor string) error {
	return repository.ReleaseCursor(ctx, c.inner, cursor)
}

var (
	_ repository.DocumentClient = (*CircuitBreakerClient)(nil)
	_ repository.CursorReleaser = (*CircuitBreakerClient)(nil)
)
