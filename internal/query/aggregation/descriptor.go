// Package aggregation describes grouping/reduction steps pushed down to the
// document backend: the descriptor handed over by the traversal layer, the
// backend-native aggregation spec it translates into, and the reducer grammar.
package aggregation

import (
	"fmt"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
)

// Fragment is an opaque, already-decomposed traversal sub-program.
type Fragment interface {
	fmt.Stringer
}

// Descriptor is (predicates, key traversal, values traversal, reducer traversal).
// It is immutable once constructed.
type Descriptor struct {
	predicates []graph.Predicate
	key        Fragment
	values     Fragment
	reduce     Fragment
	step       string
}

// NewDescriptor builds a descriptor. The predicate slice is copied.
func NewDescriptor(predicates []graph.Predicate, key, values, reduce Fragment) *Descriptor {
	return &Descriptor{
		predicates: append([]graph.Predicate(nil), predicates...),
		key:        key,
		values:     values,
		reduce:     reduce,
	}
}

// WithStep returns a copy labelled with the traversal step that produced it.
func (d *Descriptor) WithStep(step string) *Descriptor {
	cp := *d
	cp.step = step
	return &cp
}

// Predicates returns a copy of the predicate list.
func (d *Descriptor) Predicates() []graph.Predicate {
	return append([]graph.Predicate(nil), d.predicates...)
}

func (d *Descriptor) Key() Fragment    { return d.key }
func (d *Descriptor) Values() Fragment { return d.values }
func (d *Descriptor) Reduce() Fragment { return d.reduce }
func (d *Descriptor) Step() string     { return d.step }

// ============================================================================
// FRAGMENTS UNDERSTOOD BY FieldInterpreter
// ============================================================================

// GroupBy keys records by the value of a document field.
type GroupBy struct{ Field string }

// ValuesOf extracts a document field as the value to reduce.
type ValuesOf struct{ Field string }

// ReduceWith applies a reducer to each group's values.
type ReduceWith struct{ Reducer Reducer }

func (g GroupBy) String() string    { return "groupBy(" + g.Field + ")" }
func (v ValuesOf) String() string   { return "values(" + v.Field + ")" }
func (r ReduceWith) String() string { return "reduce(" + string(r.Reducer) + ")" }

// Interpreter maps traversal fragments onto the backend aggregation shape.
type Interpreter interface {
	Translate(key, values, reduce Fragment) (Spec, error)
}

// FieldInterpreter translates GroupBy/ValuesOf/ReduceWith fragments. Predicate
// keys such as ~label are mapped onto their document fields.
type FieldInterpreter struct{}

// Translate implements Interpreter.
func (FieldInterpreter) Translate(key, values, reduce Fragment) (Spec, error) {
	var spec Spec

	switch k := key.(type) {
	case GroupBy:
		spec.GroupBy = graph.DocumentField(k.Field)
	case *GroupBy:
		spec.GroupBy = graph.DocumentField(k.Field)
	default:
		return Spec{}, apperrors.UnsupportedAggregation(fmt.Sprintf("key fragment %v", key))
	}

	switch v := values.(type) {
	case nil:
	case ValuesOf:
		spec.Value = graph.DocumentField(v.Field)
	case *ValuesOf:
		spec.Value = graph.DocumentField(v.Field)
	default:
		return Spec{}, apperrors.UnsupportedAggregation(fmt.Sprintf("values fragment %v", values))
	}

	switch r := reduce.(type) {
	case ReduceWith:
		spec.Reducer = r.Reducer
	case *ReduceWith:
		spec.Reducer = r.Reducer
	default:
		return Spec{}, apperrors.UnsupportedAggregation(fmt.Sprintf("reduce fragment %v", reduce))
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
