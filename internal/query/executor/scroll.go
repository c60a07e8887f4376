package executor

import (
	"context"
	"errors"
	"iter"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// Done is returned by Iterator.Next when the sequence is exhausted.
var Done = errors.New("no more elements")

// ScrollRequest describes one scrolling query.
type ScrollRequest struct {
	Index  string
	Filter filter.Filter
	Offset int
	// PageSize bounds every page request.
	PageSize int
	// Limit caps the number of produced elements; graph.NoLimit for unbounded.
	Limit      int
	Visibility repository.Visibility
	Step       string
}

// Iterator is a lazy, forward-only sequence of scrolled elements. A page is
// fetched only when the previous one has been drained. Iterators are not
// safe for concurrent use.
type Iterator[T any] struct {
	ctx     context.Context
	exec    *Executor
	req     ScrollRequest
	convert Converter[T]

	buf      []repository.Record
	pos      int
	cursor   string
	offset   int
	produced int
	pages    int

	exhausted bool
	closed    bool
	err       error
}

// Scroll starts a scrolling query. Nothing is sent to the backend until the
// first call to Next.
func Scroll[T any](ctx context.Context, e *Executor, req ScrollRequest, convert Converter[T]) *Iterator[T] {
	req.PageSize = repository.EffectivePageSize(req.PageSize)
	if req.Filter == nil {
		req.Filter = filter.MatchAll()
	}
	return &Iterator[T]{
		ctx:     ctx,
		exec:    e,
		req:     req,
		convert: convert,
		offset:  req.Offset,
	}
}

// Empty returns an exhausted iterator that never contacts a backend.
func Empty[T any]() *Iterator[T] {
	return &Iterator[T]{exhausted: true, closed: true}
}

// Next returns the next element. It returns Done at the end of the sequence.
// A conversion failure is returned for that record only; calling Next again
// continues with the following record. Backend failures are terminal and
// are returned on every later call. After Close, Next returns Done without
// contacting the backend.
func (it *Iterator[T]) Next() (T, error) {
	var zero T
	if it.err != nil {
		return zero, it.err
	}
	if it.closed {
		return zero, Done
	}
	if it.limitReached() {
		it.finish()
		return zero, Done
	}

	if it.pos >= len(it.buf) {
		if it.exhausted {
			it.finish()
			return zero, Done
		}
		if err := it.fetch(); err != nil {
			it.err = err
			it.finish()
			return zero, err
		}
		if len(it.buf) == 0 {
			it.finish()
			return zero, Done
		}
	}

	rec := it.buf[it.pos]
	it.buf[it.pos] = repository.Record{}
	it.pos++
	it.produced++
	return it.convert(rec)
}

// Close releases any server-side cursor still held. It is safe to call more
// than once and after exhaustion.
func (it *Iterator[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.buf = nil

	if it.cursor == "" || it.exec == nil {
		return nil
	}
	cursor := it.cursor
	it.cursor = ""
	ctx := context.WithoutCancel(it.ctx)
	if err := repository.ReleaseCursor(ctx, it.exec.client, cursor); err != nil {
		it.exec.logger.Warn("Failed to release scroll cursor",
			zap.String("index", it.req.Index),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// All adapts the iterator to a range-over-func sequence. Breaking out of the
// loop closes the iterator. A per-record error is yielded with a zero
// element and iteration continues; a backend error is yielded once and ends
// the sequence.
func (it *Iterator[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer it.Close()
		for {
			el, err := it.Next()
			if errors.Is(err, Done) {
				return
			}
			if !yield(el, err) {
				return
			}
			if err != nil && it.err != nil {
				return
			}
		}
	}
}

// Pages returns how many page requests were issued so far.
func (it *Iterator[T]) Pages() int {
	return it.pages
}

// Collect drains it into a slice, failing on the first error of any kind.
func Collect[T any](it *Iterator[T]) ([]T, error) {
	defer it.Close()
	var out []T
	for {
		el, err := it.Next()
		if errors.Is(err, Done) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, el)
	}
}

func (it *Iterator[T]) limitReached() bool {
	return it.req.Limit != graph.NoLimit && it.req.Limit >= 0 && it.produced >= it.req.Limit
}

func (it *Iterator[T]) remaining() int {
	if it.req.Limit == graph.NoLimit || it.req.Limit < 0 {
		return it.req.PageSize
	}
	return min(it.req.PageSize, it.req.Limit-it.produced)
}

func (it *Iterator[T]) fetch() error {
	size := it.remaining()
	it.pages++

	start := it.exec.now()
	page, err := it.exec.client.Search(it.ctx, repository.SearchRequest{
		Index:      it.req.Index,
		Filter:     it.req.Filter,
		Offset:     it.offset,
		PageSize:   size,
		Cursor:     it.cursor,
		Visibility: it.req.Visibility,
	})
	it.exec.observe(it.ctx, PageTiming{
		Index:    it.req.Index,
		Step:     it.req.Step,
		Kind:     "search",
		Page:     it.pages,
		Records:  len(page.Records),
		Duration: it.exec.now().Sub(start),
	})
	if err != nil {
		return apperrors.BackendUnavailable("scroll", it.req.Index, err)
	}

	it.buf = page.Records
	it.pos = 0
	it.offset += len(page.Records)
	it.cursor = page.Cursor
	if !page.HasMore || len(page.Records) < size {
		it.exhausted = true
	}
	return nil
}

// finish releases the cursor once no more pages will be requested.
func (it *Iterator[T]) finish() {
	if it.exhausted && it.cursor == "" {
		it.closed = true
		it.buf = nil
		return
	}
	_ = it.Close()
}
