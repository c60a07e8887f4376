package filter

import (
	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
)

// ============================================================================
// COMPILER
// ============================================================================

// Endpoints restricts edges to those touching IDs on the given side.
type Endpoints struct {
	Direction graph.Direction
	IDs       []string
}

// Constraints are structural additions to a predicate list.
type Constraints struct {
	// Exists lists fields that must be present on every match.
	Exists []string
	// Endpoints, when set, nests the result as (direction match) AND (predicates).
	Endpoints *Endpoints
}

// Compile translates a predicate list into a filter tree. Predicates and
// existence constraints are ANDed; an endpoint constraint wraps them as
// And{direction, And{...}}, with DirectionBoth expressed as an Or of the two
// endpoint matches. Compile fails with UNSUPPORTED_PREDICATE before anything
// is sent to a backend.
func Compile(predicates []graph.Predicate, c Constraints) (Filter, error) {
	leaves := make([]Filter, 0, len(predicates)+len(c.Exists))
	for _, p := range predicates {
		leaf, err := compilePredicate(p)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}
	for _, field := range c.Exists {
		leaves = append(leaves, Exists{Field: field})
	}

	base := And{Filters: leaves}
	if c.Endpoints == nil {
		return base, nil
	}

	direction, err := directionMatch(*c.Endpoints)
	if err != nil {
		return nil, err
	}
	return And{Filters: []Filter{direction, base}}, nil
}

func directionMatch(e Endpoints) (Filter, error) {
	ids := make([]any, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id
	}

	switch e.Direction {
	case graph.DirectionIn:
		return Terms{Field: graph.FieldInID, Values: ids}, nil
	case graph.DirectionOut:
		return Terms{Field: graph.FieldOutID, Values: ids}, nil
	case graph.DirectionBoth:
		return Or{Filters: []Filter{
			Terms{Field: graph.FieldInID, Values: ids},
			Terms{Field: graph.FieldOutID, Values: ids},
		}}, nil
	default:
		return nil, apperrors.InvalidInput("unknown direction " + e.Direction.String())
	}
}

func compilePredicate(p graph.Predicate) (Filter, error) {
	field := graph.DocumentField(p.Key)
	unsupported := func() error { return apperrors.UnsupportedPredicate(p.Key, string(p.Op)) }

	switch p.Op {
	case graph.OpEq:
		return Terms{Field: field, Values: []any{p.Value}}, nil
	case graph.OpNeq:
		return Not{Filter: Terms{Field: field, Values: []any{p.Value}}}, nil
	case graph.OpWithin:
		values, ok := asList(p.Value)
		if !ok {
			return nil, unsupported()
		}
		return Terms{Field: field, Values: values}, nil
	case graph.OpWithout:
		values, ok := asList(p.Value)
		if !ok {
			return nil, unsupported()
		}
		return Not{Filter: Terms{Field: field, Values: values}}, nil
	case graph.OpLt:
		return Range{Field: field, Upper: Bound{Value: p.Value}}, nil
	case graph.OpLte:
		return Range{Field: field, Upper: Bound{Value: p.Value, Inclusive: true}}, nil
	case graph.OpGt:
		return Range{Field: field, Lower: Bound{Value: p.Value}}, nil
	case graph.OpGte:
		return Range{Field: field, Lower: Bound{Value: p.Value, Inclusive: true}}, nil
	case graph.OpBetween, graph.OpInside, graph.OpOutside:
		low, high, ok := asPair(p.Value)
		if !ok {
			return nil, unsupported()
		}
		switch p.Op {
		case graph.OpBetween:
			return Range{Field: field, Lower: Bound{Value: low, Inclusive: true}, Upper: Bound{Value: high}}, nil
		case graph.OpInside:
			return Range{Field: field, Lower: Bound{Value: low}, Upper: Bound{Value: high}}, nil
		default:
			return Or{Filters: []Filter{
				Range{Field: field, Upper: Bound{Value: low}},
				Range{Field: field, Lower: Bound{Value: high}},
			}}, nil
		}
	case graph.OpStartingWith:
		s, ok := p.Value.(string)
		if !ok {
			return nil, unsupported()
		}
		return Prefix{Field: field, Value: s}, nil
	case graph.OpContaining:
		if p.Value == nil {
			return nil, unsupported()
		}
		return Contains{Field: field, Value: p.Value}, nil
	case graph.OpExists:
		return Exists{Field: field}, nil
	case graph.OpNotExists:
		return Not{Filter: Exists{Field: field}}, nil
	default:
		return nil, unsupported()
	}
}

func asList(v any) ([]any, bool) {
	switch vs := v.(type) {
	case []any:
		return vs, true
	case []string:
		out := make([]any, len(vs))
		for i, s := range vs {
			out[i] = s
		}
		return out, true
	case nil:
		return nil, false
	default:
		return []any{v}, true
	}
}

func asPair(v any) (any, any, bool) {
	switch p := v.(type) {
	case [2]any:
		return p[0], p[1], p[0] != nil && p[1] != nil
	case []any:
		if len(p) == 2 && p[0] != nil && p[1] != nil {
			return p[0], p[1], true
		}
	}
	return nil, nil, false
}
