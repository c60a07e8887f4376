package queries

import (
	"context"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/domain/graph"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

// EdgeQueryService answers the four read contracts over the document backend.
// It holds no per-query state; every query reads the settings snapshot once
// when it starts.
type EdgeQueryService struct {
	exec        *executor.Executor
	assembler   *graph.EdgeAssembler
	interpreter aggregation.Interpreter
	settings    *settings.Store
	logger      *zap.Logger
}

// NewEdgeQueryService creates the service. A nil resolver produces plain
// vertex references; a nil interpreter uses aggregation.FieldInterpreter.
func NewEdgeQueryService(
	exec *executor.Executor,
	resolver graph.VertexResolver,
	interpreter aggregation.Interpreter,
	store *settings.Store,
	logger *zap.Logger,
) *EdgeQueryService {
	if interpreter == nil {
		interpreter = aggregation.FieldInterpreter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeQueryService{
		exec:        exec,
		assembler:   graph.NewEdgeAssembler(resolver),
		interpreter: interpreter,
		settings:    store,
		logger:      logger.Named("edge_queries"),
	}
}

// toEdge assembles a record, logging records that break the document contract.
func (s *EdgeQueryService) toEdge(rec repository.Record) (*graph.Edge, error) {
	edge, err := s.assembler.Assemble(rec.ID, rec.Label, rec.Fields)
	if err != nil {
		s.logger.Warn("Skipping malformed edge record", zap.String("id", rec.ID), zap.Error(err))
		return nil, err
	}
	return edge, nil
}

// LookupEdges returns one edge per distinct id, in request order. A missing
// id fails the whole call with ELEMENT_NOT_FOUND.
func (s *EdgeQueryService) LookupEdges(ctx context.Context, q LookupEdgesQuery) ([]*graph.Edge, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	cfg := s.settings.Load()
	return executor.LookupMany(ctx, s.exec, executor.LookupRequest{
		Index:      cfg.Index,
		IDs:        q.IDs,
		Visibility: cfg.Visibility,
		Step:       q.Step,
	}, s.toEdge)
}

// ScanEdges lazily scans the edges matching the predicates. Only documents
// carrying both endpoint fields are matched.
func (s *EdgeQueryService) ScanEdges(ctx context.Context, q ScanEdgesQuery) (*executor.Iterator[*graph.Edge], error) {
	f, err := filter.Compile(q.Predicates.Has, filter.Constraints{
		Exists: []string{graph.FieldInID, graph.FieldOutID},
	})
	if err != nil {
		return nil, err
	}
	return s.scroll(ctx, f, q.Predicates, q.Step), nil
}

// AdjacentEdges lazily scans the edges touching the vertex set. An empty
// vertex set yields the empty sequence without a backend request.
func (s *EdgeQueryService) AdjacentEdges(ctx context.Context, q AdjacentEdgesQuery) (*executor.Iterator[*graph.Edge], error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(q.VertexIDs) == 0 {
		return executor.Empty[*graph.Edge](), nil
	}

	predicates := q.Predicates
	if len(q.Labels) > 0 {
		predicates = predicates.With(graph.LabelWithin(q.Labels...))
	}
	f, err := filter.Compile(predicates.Has, filter.Constraints{
		Endpoints: &filter.Endpoints{Direction: q.Direction, IDs: q.VertexIDs},
	})
	if err != nil {
		return nil, err
	}
	return s.scroll(ctx, f, predicates, q.Step), nil
}

func (s *EdgeQueryService) scroll(ctx context.Context, f filter.Filter, p graph.Predicates, step string) *executor.Iterator[*graph.Edge] {
	cfg := s.settings.Load()
	s.logger.Debug("Starting edge scroll",
		zap.String("index", cfg.Index),
		zap.String("step", step),
		zap.Int("limit", p.Limit()),
		zap.String("filter", filter.String(f)),
	)
	return executor.Scroll(ctx, s.exec, executor.ScrollRequest{
		Index:      cfg.Index,
		Filter:     f,
		PageSize:   cfg.PageSize,
		Limit:      p.Limit(),
		Visibility: cfg.Visibility,
		Step:       step,
	}, s.toEdge)
}

// Aggregate compiles the descriptor's predicates, translates its fragments
// and runs a single aggregation request. The result is fully materialized.
func (s *EdgeQueryService) Aggregate(ctx context.Context, q AggregateEdgesQuery) (map[string]any, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	d := q.Descriptor

	f, err := filter.Compile(d.Predicates(), filter.Constraints{})
	if err != nil {
		return nil, err
	}
	spec, err := s.interpreter.Translate(d.Key(), d.Values(), d.Reduce())
	if err != nil {
		return nil, err
	}

	cfg := s.settings.Load()
	start := s.exec.Now()
	result, err := s.exec.Aggregate(ctx, executor.AggregateRequest{
		Index:      cfg.Index,
		Filter:     f,
		Spec:       spec,
		Visibility: cfg.Visibility,
		Step:       d.Step(),
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Aggregation completed",
		zap.String("index", cfg.Index),
		zap.String("step", d.Step()),
		zap.String("group_by", spec.GroupBy),
		zap.String("reducer", string(spec.Reducer)),
		zap.Int("groups", len(result)),
		zap.Duration("duration", s.exec.Now().Sub(start)),
	)
	return result, nil
}
