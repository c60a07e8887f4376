package rest

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/application/queries"
	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/executor"
)

// EdgeHandler serves the edge endpoints.
type EdgeHandler struct {
	queries   *queries.EdgeQueryService
	create    *commands.CreateEdgeHandler
	validator *Validator
	logger    *zap.Logger
}

// NewEdgeHandler creates an EdgeHandler.
func NewEdgeHandler(q *queries.EdgeQueryService, c *commands.CreateEdgeHandler, logger *zap.Logger) *EdgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeHandler{
		queries:   q,
		create:    c,
		validator: NewValidator(),
		logger:    logger.Named("edge_handler"),
	}
}

// Lookup handles POST /api/v1/edges/lookup.
func (h *EdgeHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	edges, err := h.queries.LookupEdges(r.Context(), queries.LookupEdgesQuery{IDs: req.IDs, Step: "rest.lookup"})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, NewEdgesResponse(edges))
}

// Search handles POST /api/v1/edges/search.
func (h *EdgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	it, err := h.queries.ScanEdges(r.Context(), queries.ScanEdgesQuery{
		Predicates: ToPredicates(req.Predicates, req.Limit),
		Step:       "rest.search",
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.drain(w, r, it)
}

// Adjacent handles POST /api/v1/edges/adjacent.
func (h *EdgeHandler) Adjacent(w http.ResponseWriter, r *http.Request) {
	var req AdjacentRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	dir, err := graph.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, r, h.logger, apperrors.InvalidInput(err.Error()))
		return
	}

	it, err := h.queries.AdjacentEdges(r.Context(), queries.AdjacentEdgesQuery{
		VertexIDs:  req.VertexIDs,
		Direction:  dir,
		Labels:     req.Labels,
		Predicates: ToPredicates(req.Predicates, req.Limit),
		Step:       "rest.adjacent",
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.drain(w, r, it)
}

// Aggregate handles POST /api/v1/edges/aggregate.
func (h *EdgeHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	var req AggregateRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var values aggregation.Fragment
	if req.Values != "" {
		values = aggregation.ValuesOf{Field: req.Values}
	}
	desc := aggregation.NewDescriptor(
		ToPredicates(req.Predicates, 0).Has,
		aggregation.GroupBy{Field: req.Key},
		values,
		aggregation.ReduceWith{Reducer: aggregation.Reducer(strings.ToLower(req.Reducer))},
	).WithStep("rest.aggregate")

	result, err := h.queries.Aggregate(r.Context(), queries.AggregateEdgesQuery{Descriptor: desc})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, NewAggregateResponse(result))
}

// Create handles POST /api/v1/edges.
func (h *EdgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if err := h.validator.decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	edge, err := h.create.Handle(r.Context(), commands.CreateEdgeCommand{
		ID:         req.ID,
		Label:      req.Label,
		Out:        req.Out,
		In:         req.In,
		Properties: req.Properties,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/edges/"+edge.ID())
	writeJSON(w, http.StatusCreated, ToEdgeDTO(edge))
}

// drain writes a scan as an EdgesResponse.
func (h *EdgeHandler) drain(w http.ResponseWriter, r *http.Request, it *executor.Iterator[*graph.Edge]) {
	resp, err := CollectEdges(it, h.logger)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CollectEdges drains and closes it. Records that fail to assemble are
// reported as skipped; any other error aborts the scan.
func CollectEdges(it *executor.Iterator[*graph.Edge], logger *zap.Logger) (EdgesResponse, error) {
	defer func() {
		if err := it.Close(); err != nil && logger != nil {
			logger.Warn("Failed to release scroll cursor", zap.Error(err))
		}
	}()

	resp := EdgesResponse{Edges: []EdgeDTO{}}
	for e, err := range it.All() {
		if err != nil {
			if apperrors.IsMalformedRecord(err) {
				resp.Skipped = append(resp.Skipped, toErrorDTO(err))
				continue
			}
			return EdgesResponse{}, err
		}
		resp.Edges = append(resp.Edges, ToEdgeDTO(e))
	}
	resp.Count = len(resp.Edges)
	return resp, nil
}

// NewEdgesResponse wraps already materialized edges.
func NewEdgesResponse(edges []*graph.Edge) EdgesResponse {
	resp := EdgesResponse{Edges: make([]EdgeDTO, 0, len(edges)), Count: len(edges)}
	for _, e := range edges {
		resp.Edges = append(resp.Edges, ToEdgeDTO(e))
	}
	return resp
}
