package executor

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/repository"
)

// LookupRequest fetches documents by identifier.
type LookupRequest struct {
	Index      string
	IDs        []string
	Visibility repository.Visibility
	Step       string
}

// LookupMany issues a single batched fetch for the distinct ids of req and
// converts each record. It is all-or-nothing: the first requested id without
// a record fails the call with ELEMENT_NOT_FOUND. Results follow request
// order. An empty id set returns without contacting the backend.
func LookupMany[T any](ctx context.Context, e *Executor, req LookupRequest, convert Converter[T]) ([]T, error) {
	ids := distinct(req.IDs)
	if len(ids) == 0 {
		return nil, nil
	}

	start := e.now()
	records, err := e.client.LookupMany(ctx, req.Index, ids, req.Visibility)
	e.observe(ctx, PageTiming{
		Index:    req.Index,
		Step:     req.Step,
		Kind:     "lookup",
		Page:     1,
		Records:  len(records),
		Duration: e.now().Sub(start),
	})
	if err != nil {
		return nil, apperrors.BackendUnavailable("lookup", req.Index, err)
	}

	byID := make(map[string]repository.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		rec, ok := byID[id]
		if !ok {
			e.logger.Debug("Lookup missed identifier",
				zap.String("index", req.Index),
				zap.String("id", id),
			)
			return nil, apperrors.ElementNotFound(id)
		}
		el, err := convert(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
