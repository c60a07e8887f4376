package aggregation

import (
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/filter"
)

// Reducer is one operation of the supported reducer grammar.
type Reducer string

const (
	// ReduceCount counts records per group and needs no value field.
	ReduceCount Reducer = "count"
	// ReduceSum, ReduceMin, ReduceMax and ReduceMean work on numeric values
	// and yield float64.
	ReduceSum  Reducer = "sum"
	ReduceMin  Reducer = "min"
	ReduceMax  Reducer = "max"
	ReduceMean Reducer = "mean"
	// ReduceCollect gathers every value of the group in encounter order.
	ReduceCollect Reducer = "collect"
)

// Reducers lists the supported grammar.
var Reducers = []Reducer{ReduceCount, ReduceSum, ReduceMin, ReduceMax, ReduceMean, ReduceCollect}

// ParseReducer validates a reducer name.
func ParseReducer(s string) (Reducer, error) {
	for _, r := range Reducers {
		if string(r) == s {
			return r, nil
		}
	}
	return "", apperrors.UnsupportedAggregation("reducer " + strconv.Quote(s))
}

// Spec is the backend-native aggregation request: group documents by one
// field, extract another and reduce it.
type Spec struct {
	GroupBy string
	Value   string
	Reducer Reducer
}

// Validate checks the spec is executable.
func (s Spec) Validate() error {
	if s.GroupBy == "" {
		return apperrors.UnsupportedAggregation("group field is required")
	}
	if _, err := ParseReducer(string(s.Reducer)); err != nil {
		return err
	}
	if s.Reducer != ReduceCount && s.Value == "" {
		return apperrors.UnsupportedAggregation(fmt.Sprintf("reducer %s needs a value field", s.Reducer))
	}
	return nil
}

// ============================================================================
// ACCUMULATOR
// ============================================================================

type group struct {
	count  int64
	n      int64
	sum    float64
	min    float64
	max    float64
	values []any
}

// Accumulator evaluates a Spec over documents one at a time. Backends
// without native aggregations feed their matches through it.
type Accumulator struct {
	spec   Spec
	groups map[string]*group
	order  []string
}

// NewAccumulator creates an accumulator for spec.
func NewAccumulator(spec Spec) *Accumulator {
	return &Accumulator{spec: spec, groups: make(map[string]*group)}
}

// Add folds one document into its group. Documents without the group field
// are skipped; numeric reducers skip non-numeric values.
func (a *Accumulator) Add(doc map[string]any) {
	raw, ok := doc[a.spec.GroupBy]
	if !ok || raw == nil {
		return
	}
	key := GroupKey(raw)

	g, ok := a.groups[key]
	if !ok {
		g = &group{min: math.Inf(1), max: math.Inf(-1)}
		a.groups[key] = g
		a.order = append(a.order, key)
	}
	g.count++

	if a.spec.Value == "" {
		return
	}
	v, ok := doc[a.spec.Value]
	if !ok {
		return
	}
	if a.spec.Reducer == ReduceCollect {
		g.values = append(g.values, v)
		return
	}
	n, ok := filter.Number(v)
	if !ok {
		return
	}
	g.n++
	g.sum += n
	g.min = math.Min(g.min, n)
	g.max = math.Max(g.max, n)
}

// Result returns the group key to reduced value mapping. Groups without a
// single numeric value are omitted from min/max/mean results.
func (a *Accumulator) Result() map[string]any {
	out := make(map[string]any, len(a.groups))
	for _, key := range a.order {
		g := a.groups[key]
		switch a.spec.Reducer {
		case ReduceCount:
			out[key] = g.count
		case ReduceSum:
			out[key] = g.sum
		case ReduceMin:
			if g.n > 0 {
				out[key] = g.min
			}
		case ReduceMax:
			if g.n > 0 {
				out[key] = g.max
			}
		case ReduceMean:
			if g.n > 0 {
				out[key] = g.sum / float64(g.n)
			}
		case ReduceCollect:
			if g.values == nil {
				out[key] = []any{}
			} else {
				out[key] = g.values
			}
		}
	}
	return out
}

// GroupKey renders a group field value as a map key.
func GroupKey(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case bool:
		return strconv.FormatBool(k)
	}
	if n, ok := filter.Number(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
