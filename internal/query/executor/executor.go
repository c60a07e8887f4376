// Package executor runs compiled filters against a document backend: batched
// lookups by identifier, lazily scrolled searches and single-shot
// aggregations.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/repository"
)

// Converter turns a raw record into an element.
type Converter[T any] func(repository.Record) (T, error)

// PageTiming describes one backend round trip.
type PageTiming struct {
	Index    string
	Step     string
	Kind     string // "lookup", "search" or "aggregate"
	Page     int
	Records  int
	Duration time.Duration
}

// TimingSink receives per-page latency. Failures are logged and ignored.
type TimingSink interface {
	ObservePage(ctx context.Context, timing PageTiming) error
}

// TimingSinkFunc adapts a function to TimingSink.
type TimingSinkFunc func(ctx context.Context, timing PageTiming) error

// ObservePage calls f.
func (f TimingSinkFunc) ObservePage(ctx context.Context, timing PageTiming) error {
	return f(ctx, timing)
}

// Executor holds the immutable collaborators shared by every query: the
// backend client, the timing sink and the logger.
type Executor struct {
	client repository.DocumentClient
	sink   TimingSink
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimingSink sets the sink receiving page latencies.
func WithTimingSink(sink TimingSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for page timings.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor over client.
func New(client repository.DocumentClient, opts ...Option) *Executor {
	e := &Executor{
		client: client,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now reads the executor's clock.
func (e *Executor) Now() time.Time {
	return e.now()
}

// observe reports a timing; sink failures never reach the caller.
func (e *Executor) observe(ctx context.Context, timing PageTiming) {
	if e.sink == nil {
		return
	}
	if err := e.sink.ObservePage(ctx, timing); err != nil {
		e.logger.Warn("Timing sink failed",
			zap.String("index", timing.Index),
			zap.String("kind", timing.Kind),
			zap.Int("page", timing.Page),
			zap.Error(err),
		)
	}
}
