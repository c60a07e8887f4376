// Package decorators provides cross-cutting wrappers for the document client.
package decorators

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// LoggingConfig controls what the decorator logs.
type LoggingConfig struct {
	LogRequests   bool          // Log request shape (index, sizes, filter)
	LogErrors     bool          // Log failures at error level
	LogLevel      zapcore.Level // Level for successful operations
	SlowThreshold time.Duration // Successful calls slower than this log at warn
}

// DefaultLoggingConfig returns the defaults used by the service.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogRequests:   true,
		LogErrors:     true,
		LogLevel:      zapcore.DebugLevel,
		SlowThreshold: 500 * time.Millisecond,
	}
}

// LoggingClient logs every backend call with its duration. Document
// contents are never logged.
type LoggingClient struct {
	inner  repository.DocumentClient
	logger *zap.Logger
	config LoggingConfig
	now    func() time.Time
}

// NewLoggingClient wraps inner.
func NewLoggingClient(inner repository.DocumentClient, logger *zap.Logger, config LoggingConfig) *LoggingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingClient{
		inner:  inner,
		logger: logger.Named("document_client"),
		config: config,
		now:    time.Now,
	}
}

func (l *LoggingClient) done(operation string, start time.Time, err error, fields ...zap.Field) {
	duration := l.now().Sub(start)
	fields = append(fields, zap.String("operation", operation), zap.Duration("duration", duration))

	if err != nil {
		if l.config.LogErrors {
			l.logger.Error("Backend operation failed", append(fields, zap.Error(err))...)
		}
		return
	}
	if l.config.SlowThreshold > 0 && duration > l.config.SlowThreshold {
		l.logger.Warn("Slow backend operation", append(fields, zap.Duration("threshold", l.config.SlowThreshold))...)
		return
	}
	if ce := l.logger.Check(l.config.LogLevel, "Backend operation completed"); ce != nil {
		ce.Write(fields...)
	}
}

// LookupMany logs the batched fetch.
func (l *LoggingClient) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	start := l.now()
	records, err := l.inner.LookupMany(ctx, index, ids, visibility)
	fields := []zap.Field{zap.String("index", index), zap.Int("found", len(records))}
	if l.config.LogRequests {
		fields = append(fields, zap.Int("requested", len(ids)), zap.Stringer("visibility", visibility))
	}
	l.done("lookup_many", start, err, fields...)
	return records, err
}

// Search logs a page request.
func (l *LoggingClient) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	start := l.now()
	page, err := l.inner.Search(ctx, req)
	fields := []zap.Field{
		zap.String("index", req.Index),
		zap.Int("records", len(page.Records)),
		zap.Bool("has_more", page.HasMore),
	}
	if l.config.LogRequests {
		fields = append(fields,
			zap.Int("page_size", req.PageSize),
			zap.Int("offset", req.Offset),
			zap.Bool("continuation", req.Cursor != ""),
			zap.String("filter", filter.String(req.Filter)),
		)
	}
	l.done("search", start, err, fields...)
	return page, err
}

// Create logs the conditional write. A conflict is an expected outcome and
// logs at info.
func (l *LoggingClient) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	start := l.now()
	err := l.inner.Create(ctx, index, record, visibility)
	fields := []zap.Field{zap.String("index", index), zap.String("id", record.ID)}
	if err == repository.ErrConflict {
		l.logger.Info("Create rejected, identifier exists", append(fields, zap.Duration("duration", l.now().Sub(start)))...)
		return err
	}
	l.done("create", start, err, fields...)
	return err
}

// Aggregate logs the aggregation request.
func (l *LoggingClient) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	start := l.now()
	result, err := l.inner.Aggregate(ctx, index, f, spec, visibility)
	fields := []zap.Field{zap.String("index", index), zap.Int("groups", len(result))}
	if l.config.LogRequests {
		fields = append(fields,
			zap.String("group_by", spec.GroupBy),
			zap.String("reducer", string(spec.Reducer)),
			zap.String("filter", filter.String(f)),
		)
	}
	l.done("aggregate", start, err, fields...)
	return result, err
}

// ReleaseCursor forwards to the wrapped client.
func (l *LoggingClient) ReleaseCursor(ctx context.Context, cursor string) error {
	err := repository.ReleaseCursor(ctx, l.inner, cursor)
	if err != nil {
		l.logger.Warn("Cursor release failed", zap.Error(err))
	}
	return err
}

var (
	_ repository.DocumentClient = (*LoggingClient)(nil)
	_ repository.CursorReleaser = (*LoggingClient)(nil)
)
