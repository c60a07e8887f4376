// Package persistence builds the backend document client and wraps it with
// the resilience decorators.
package persistence

import (
	"context"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// ============================================================================
// RETRY DECORATOR - Retries idempotent reads with exponential backoff
// ============================================================================

// RetryClient retries reads that fail with a retryable error. Create is not
// retried: a timed-out create may have been applied, and a blind retry would
// turn that success into a spurious conflict.
type RetryClient struct {
	inner  repository.DocumentClient
	config repository.RetryConfig
	logger *zap.Logger
}

// NewRetryClient wraps inner.
func NewRetryClient(inner repository.DocumentClient, config repository.RetryConfig, logger *zap.Logger) *RetryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryClient{inner: inner, config: config, logger: logger.Named("retry_client")}
}

func (r *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	err := repository.RetryWithBackoff(ctx, r.config, func() error {
		attempt++
		err := fn()
		if err != nil && attempt > 1 {
			r.logger.Debug("Retry attempt failed",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	if err == nil && attempt > 1 {
		r.logger.Info("Operation succeeded after retry",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
		)
	}
	return err
}

// LookupMany retries the batched fetch.
func (r *RetryClient) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	var result []repository.Record
	err := r.retry(ctx, "LookupMany", func() error {
		var err error
		result, err = r.inner.LookupMany(ctx, index, ids, visibility)
		return err
	})
	return result, err
}

// Search retries a page request. Cursors are not advanced by a failed
// request, so repeating it is safe.
func (r *RetryClient) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	var result repository.SearchPage
	err := r.retry(ctx, "Search", func() error {
		var err error
		result, err = r.inner.Search(ctx, req)
		return err
	})
	return result, err
}

// Create passes through without retry.
func (r *RetryClient) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	return r.inner.Create(ctx, index, record, visibility)
}

// Aggregate retries the aggregation request.
func (r *RetryClient) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	var result map[string]any
	err := r.retry(ctx, "Aggregate", func() error {
		var err error
		result, err = r.inner.Aggregate(ctx, index, f, spec, visibility)
		return err
	})
	return result, err
}

// ReleaseCursor forwards to the wrapped client.
func (r *RetryClient) ReleaseCursor(ctx context.Context, cursor string) error {
	return repository.ReleaseCursor(ctx, r.inner, cursor)
}

var (
	_ repository.DocumentClient = (*RetryClient)(nil)
	_ repository.CursorReleaser = (*RetryClient)(nil)
)
