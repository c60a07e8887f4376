package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// InstrumentedClient records a span and backend metrics for every call.
type InstrumentedClient struct {
	inner     repository.DocumentClient
	collector *Collector
	tracer    trace.Tracer
	now       func() time.Time
}

// NewInstrumentedClient wraps inner. A nil tracer uses the global provider;
// a nil collector disables metrics.
func NewInstrumentedClient(inner repository.DocumentClient, collector *Collector, tracer trace.Tracer) *InstrumentedClient {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &InstrumentedClient{inner: inner, collector: collector, tracer: tracer, now: time.Now}
}

func (c *InstrumentedClient) start(ctx context.Context, operation, index string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	attrs = append(attrs,
		attribute.String("db.operation.name", operation),
		attribute.String("unipop.index", index),
	)
	ctx, span := c.tracer.Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, span, c.now()
}

func (c *InstrumentedClient) finish(span trace.Span, operation, index string, start time.Time, err error) {
	status := outcome(err)
	if err != nil && status == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := apperrors.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("error.code", string(code)))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	if c.collector != nil {
		c.collector.RecordBackend(operation, index, status, c.now().Sub(start))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// LookupMany traces the batched fetch.
func (c *InstrumentedClient) LookupMany(ctx context.Context, index string, ids []string, visibility repository.Visibility) ([]repository.Record, error) {
	ctx, span, start := c.start(ctx, "lookup_many", index,
		attribute.Int("unipop.ids", len(ids)),
		attribute.String("unipop.visibility", visibility.String()),
	)
	records, err := c.inner.LookupMany(ctx, index, ids, visibility)
	span.SetAttributes(attribute.Int("unipop.found", len(records)))
	c.finish(span, "lookup_many", index, start, err)
	return records, err
}

// Search traces a page request.
func (c *InstrumentedClient) Search(ctx context.Context, req repository.SearchRequest) (repository.SearchPage, error) {
	ctx, span, start := c.start(ctx, "search", req.Index,
		attribute.Int("unipop.page_size", req.PageSize),
		attribute.Int("unipop.offset", req.Offset),
		attribute.Bool("unipop.continuation", req.Cursor != ""),
	)
	page, err := c.inner.Search(ctx, req)
	span.SetAttributes(
		attribute.Int("unipop.records", len(page.Records)),
		attribute.Bool("unipop.has_more", page.HasMore),
	)
	c.finish(span, "search", req.Index, start, err)
	return page, err
}

// Create traces the conditional write.
func (c *InstrumentedClient) Create(ctx context.Context, index string, record repository.Record, visibility repository.Visibility) error {
	ctx, span, start := c.start(ctx, "create", index, attribute.String("unipop.id", record.ID))
	err := c.inner.Create(ctx, index, record, visibility)
	c.finish(span, "create", index, start, err)
	if c.collector != nil {
		switch outcome(err) {
		case "success":
			c.collector.EdgesCreated.Inc()
		case "conflict":
			c.collector.EdgeConflicts.Inc()
		}
	}
	return err
}

// Aggregate traces the aggregation request.
func (c *InstrumentedClient) Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility repository.Visibility) (map[string]any, error) {
	ctx, span, start := c.start(ctx, "aggregate", index,
		attribute.String("unipop.group_by", spec.GroupBy),
		attribute.String("unipop.reducer", string(spec.Reducer)),
	)
	result, err := c.inner.Aggregate(ctx, index, f, spec, visibility)
	span.SetAttributes(attribute.Int("unipop.groups", len(result)))
	c.finish(span, "aggregate", index, start, err)
	return result, err
}

// ReleaseCursor forwards to the wrapped client.
func (c *InstrumentedClient) ReleaseCursor(ctx context.Context, cursor string) error {
	return repository.ReleaseCursor(ctx, c.inner, cursor)
}

var (
	_ repository.DocumentClient = (*InstrumentedClient)(nil)
	_ repository.CursorReleaser = (*InstrumentedClient)(nil)
)
