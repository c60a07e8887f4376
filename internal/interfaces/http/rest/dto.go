package rest

import (
	"sort"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/domain/graph"
)

// PredicateDTO is one (key, operator, value) constraint. Range operators
// take a two element array, set operators an array.
type PredicateDTO struct {
	Key   string `json:"key" validate:"required"`
	Op    string `json:"op" validate:"required"`
	Value any    `json:"value,omitempty"`
}

// LookupRequest is the body of POST /api/v1/edges/lookup.
type LookupRequest struct {
	IDs []string `json:"ids" validate:"dive,required"`
}

// SearchRequest is the body of POST /api/v1/edges/search. A zero limit is
// unbounded.
type SearchRequest struct {
	Predicates []PredicateDTO `json:"predicates" validate:"dive"`
	Limit      int            `json:"limit" validate:"min=0"`
}

// AdjacentRequest is the body of POST /api/v1/edges/adjacent.
type AdjacentRequest struct {
	VertexIDs  []string       `json:"vertex_ids" validate:"dive,required"`
	Direction  string         `json:"direction" validate:"required,oneof=in out both IN OUT BOTH"`
	Labels     []string       `json:"labels" validate:"dive,required"`
	Predicates []PredicateDTO `json:"predicates" validate:"dive"`
	Limit      int            `json:"limit" validate:"min=0"`
}

// AggregateRequest is the body of POST /api/v1/edges/aggregate.
type AggregateRequest struct {
	Predicates []PredicateDTO `json:"predicates" validate:"dive"`
	Key        string         `json:"key" validate:"required"`
	Values     string         `json:"values,omitempty"`
	Reducer    string         `json:"reducer" validate:"required"`
}

// CreateEdgeRequest is the body of POST /api/v1/edges. A missing id is
// generated.
type CreateEdgeRequest struct {
	ID         string            `json:"id"`
	Label      string            `json:"label" validate:"required"`
	Out        commands.Endpoint `json:"out" validate:"required"`
	In         commands.Endpoint `json:"in" validate:"required"`
	Properties map[string]any    `json:"properties,omitempty"`
}

// VertexDTO references an edge endpoint.
type VertexDTO struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// EdgeDTO is the JSON view of an edge.
type EdgeDTO struct {
	ID         string         `json:"id" yaml:"id"`
	Label      string         `json:"label" yaml:"label"`
	Out        VertexDTO      `json:"out" yaml:"out"`
	In         VertexDTO      `json:"in" yaml:"in"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ErrorDTO describes one failure.
type ErrorDTO struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// EdgesResponse lists edges; Skipped reports records that could not be
// assembled.
type EdgesResponse struct {
	Edges   []EdgeDTO  `json:"edges" yaml:"edges"`
	Count   int        `json:"count" yaml:"count"`
	Skipped []ErrorDTO `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// AggregateResponse carries the aggregation result; Groups lists the keys
// in sorted order.
type AggregateResponse struct {
	Result map[string]any `json:"result" yaml:"result"`
	Groups []string       `json:"groups" yaml:"groups"`
}

// ToEdgeDTO converts an edge.
func ToEdgeDTO(e *graph.Edge) EdgeDTO {
	dto := EdgeDTO{
		ID:    e.ID(),
		Label: e.Label(),
		Out:   VertexDTO{ID: e.OutVertex().ID(), Label: e.OutVertex().Label()},
		In:    VertexDTO{ID: e.InVertex().ID(), Label: e.InVertex().Label()},
	}
	if props := e.Properties(); len(props) > 0 {
		dto.Properties = make(map[string]any, len(props))
		for _, p := range props {
			dto.Properties[p.Key] = p.Value
		}
	}
	return dto
}

// ToPredicates converts the DTOs into graph predicates. NoLimit is used
// for a zero limit.
func ToPredicates(dtos []PredicateDTO, limit int) graph.Predicates {
	has := make([]graph.Predicate, len(dtos))
	for i, d := range dtos {
		has[i] = graph.Has(d.Key, graph.Operator(d.Op), d.Value)
	}
	p := graph.NewPredicates(has...)
	if limit > 0 {
		p = p.WithRange(0, limit)
	}
	return p
}

// NewAggregateResponse wraps an aggregation result.
func NewAggregateResponse(result map[string]any) AggregateResponse {
	groups := make([]string, 0, len(result))
	for k := range result {
		groups = append(groups, k)
	}
	sort.Strings(groups)
	return AggregateResponse{Result: result, Groups: groups}
}
