package executor

import (
	"context"

	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// AggregateRequest runs one aggregation over the documents matching Filter.
type AggregateRequest struct {
	Index      string
	Filter     filter.Filter
	Spec       aggregation.Spec
	Visibility repository.Visibility
	Step       string
}

// Aggregate issues a single aggregation request and reports it to the timing
// sink as one page whose record count is the number of groups returned.
// Backend failures become BACKEND_UNAVAILABLE; an unsupported aggregation is
// returned as is.
func (e *Executor) Aggregate(ctx context.Context, req AggregateRequest) (map[string]any, error) {
	start := e.now()
	result, err := e.client.Aggregate(ctx, req.Index, req.Filter, req.Spec, req.Visibility)
	e.observe(ctx, PageTiming{
		Index:    req.Index,
		Step:     req.Step,
		Kind:     "aggregate",
		Page:     1,
		Records:  len(result),
		Duration: e.now().Sub(start),
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnsupportedAggregation) {
			return nil, err
		}
		return nil, apperrors.BackendUnavailable("aggregate", req.Index, err)
	}
	return result, nil
}
