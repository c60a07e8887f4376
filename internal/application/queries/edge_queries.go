// Package queries implements the read side of the engine: lookup by
// identifiers, filtered scans, adjacency scans and aggregation pushdown.
package queries

import (
	"strings"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
)

// LookupEdgesQuery fetches edges by identifier.
type LookupEdgesQuery struct {
	IDs  []string
	Step string
}

// Validate rejects blank identifiers.
func (q LookupEdgesQuery) Validate() error {
	for _, id := range q.IDs {
		if strings.TrimSpace(id) == "" {
			return apperrors.InvalidInput("edge ids must not be blank")
		}
	}
	return nil
}

// ScanEdgesQuery scans every edge matching Predicates.
type ScanEdgesQuery struct {
	Predicates graph.Predicates
	Step       string
}

// AdjacentEdgesQuery scans the edges touching VertexIDs on the Direction side.
type AdjacentEdgesQuery struct {
	VertexIDs  []string
	Direction  graph.Direction
	Labels     []string
	Predicates graph.Predicates
	Step       string
}

// Validate checks the direction.
func (q AdjacentEdgesQuery) Validate() error {
	switch q.Direction {
	case graph.DirectionIn, graph.DirectionOut, graph.DirectionBoth:
	default:
		return apperrors.InvalidInput("unknown direction " + q.Direction.String())
	}
	for _, id := range q.VertexIDs {
		if strings.TrimSpace(id) == "" {
			return apperrors.InvalidInput("vertex ids must not be blank")
		}
	}
	return nil
}

// AggregateEdgesQuery pushes an aggregation down to the backend.
type AggregateEdgesQuery struct {
	Descriptor *aggregation.Descriptor
}

// Validate requires a descriptor.
func (q AggregateEdgesQuery) Validate() error {
	if q.Descriptor == nil {
		return apperrors.InvalidInput("aggregation descriptor is required")
	}
	return nil
}
