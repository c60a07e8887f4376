package graph

import (
	"fmt"
	"math"
)

// Operator is the comparison a predicate applies.
type Operator string

const (
	OpEq           Operator = "eq"
	OpNeq          Operator = "neq"
	OpLt           Operator = "lt"
	OpLte          Operator = "lte"
	OpGt           Operator = "gt"
	OpGte          Operator = "gte"
	OpWithin       Operator = "within"
	OpWithout      Operator = "without"
	OpBetween      Operator = "between" // [low, high)
	OpInside       Operator = "inside"  // (low, high)
	OpOutside      Operator = "outside" // < low or > high
	OpStartingWith Operator = "startingWith"
	OpContaining   Operator = "containing"
	OpExists       Operator = "exists"
	OpNotExists    Operator = "notExists"
)

// Predicate is an (attribute, operator, value) constraint from the traversal layer.
// Value holds a single operand, a []any for within/without, or a [2]any for
// between/inside/outside.
type Predicate struct {
	Key   string
	Op    Operator
	Value any
}

func (p Predicate) String() string {
	if p.Value == nil {
		return fmt.Sprintf("%s %s", p.Key, p.Op)
	}
	return fmt.Sprintf("%s %s %v", p.Key, p.Op, p.Value)
}

// Has builds a predicate.
func Has(key string, op Operator, value any) Predicate {
	return Predicate{Key: key, Op: op, Value: value}
}

// Eq builds an equality predicate.
func Eq(key string, value any) Predicate {
	return Predicate{Key: key, Op: OpEq, Value: value}
}

// Within builds a set-membership predicate.
func Within(key string, values ...any) Predicate {
	return Predicate{Key: key, Op: OpWithin, Value: values}
}

// Between builds a [low, high) range predicate.
func Between(key string, low, high any) Predicate {
	return Predicate{Key: key, Op: OpBetween, Value: [2]any{low, high}}
}

// LabelWithin restricts the element label to one of labels.
func LabelWithin(labels ...string) Predicate {
	values := make([]any, len(labels))
	for i, l := range labels {
		values[i] = l
	}
	return Within(KeyLabel, values...)
}

// NoLimit marks an unbounded result range.
const NoLimit = -1

// Predicates is the predicate list of one traversal step together with the
// result range the step may produce. The zero value is unbounded; a range
// set with WithRange is honored even when it is [0, 0).
type Predicates struct {
	Has       []Predicate
	LimitLow  int
	LimitHigh int

	ranged bool
}

// NewPredicates returns an unbounded predicate set.
func NewPredicates(has ...Predicate) Predicates {
	return Predicates{Has: has, LimitHigh: NoLimit}
}

// WithRange returns a copy restricted to results [low, high).
func (p Predicates) WithRange(low, high int) Predicates {
	p.LimitLow = low
	p.LimitHigh = high
	p.ranged = true
	return p
}

// Limit is the maximum number of results, or NoLimit.
func (p Predicates) Limit() int {
	if p.LimitHigh < 0 || p.LimitHigh == math.MaxInt || (!p.ranged && p.LimitHigh == 0 && p.LimitLow == 0) {
		return NoLimit
	}
	if n := p.LimitHigh - p.LimitLow; n > 0 {
		return n
	}
	return 0
}

// With returns a copy with extra predicates appended; the receiver is not modified.
func (p Predicates) With(extra ...Predicate) Predicates {
	has := make([]Predicate, 0, len(p.Has)+len(extra))
	has = append(has, p.Has...)
	has = append(has, extra...)
	p.Has = has
	return p
}
