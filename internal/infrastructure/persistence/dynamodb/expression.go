package dynamodb

import (
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/filter"
)

// maxInOperands is DynamoDB's limit on the operands of a single IN.
const maxInOperands = 100

// ============================================================================
// FILTER TRANSLATION
// ============================================================================

// Every stored item carries the identifier attribute, so its presence and
// absence serve as the constant true and false conditions.
func alwaysTrue() expression.ConditionBuilder {
	return expression.AttributeExists(expression.Name(graph.FieldID))
}

func alwaysFalse() expression.ConditionBuilder {
	return expression.AttributeNotExists(expression.Name(graph.FieldID))
}

// Condition translates a filter tree into a DynamoDB condition. It returns
// false when the filter matches everything and no expression is needed.
func Condition(f filter.Filter) (expression.ConditionBuilder, bool, error) {
	if f == nil || filter.IsMatchAll(f) {
		return expression.ConditionBuilder{}, false, nil
	}
	cond, err := translate(f)
	if err != nil {
		return expression.ConditionBuilder{}, false, err
	}
	return cond, true, nil
}

func translate(f filter.Filter) (expression.ConditionBuilder, error) {
	switch n := f.(type) {
	case filter.And:
		return combine(n.Filters, alwaysTrue, expression.And)
	case filter.Or:
		return combine(n.Filters, alwaysFalse, expression.Or)
	case filter.Not:
		inner, err := translate(n.Filter)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Not(inner), nil
	case filter.Terms:
		return terms(n), nil
	case filter.Range:
		return rangeCondition(n), nil
	case filter.Exists:
		return expression.AttributeExists(expression.Name(n.Field)), nil
	case filter.Prefix:
		return expression.Name(n.Field).BeginsWith(n.Value), nil
	case filter.Contains:
		// contains() on a number attribute never matches, so only string
		// operands have a faithful translation.
		s, ok := n.Value.(string)
		if !ok {
			return expression.ConditionBuilder{}, apperrors.UnsupportedPredicate(n.Field, fmt.Sprintf("contains %T", n.Value))
		}
		return expression.Name(n.Field).Contains(s), nil
	default:
		return expression.ConditionBuilder{}, fmt.Errorf("unsupported filter node %T", f)
	}
}

type joiner func(left, right expression.ConditionBuilder, other ...expression.ConditionBuilder) expression.ConditionBuilder

func combine(children []filter.Filter, empty func() expression.ConditionBuilder, join joiner) (expression.ConditionBuilder, error) {
	conds := make([]expression.ConditionBuilder, 0, len(children))
	for _, c := range children {
		cond, err := translate(c)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		conds = append(conds, cond)
	}
	switch len(conds) {
	case 0:
		return empty(), nil
	case 1:
		return conds[0], nil
	default:
		return join(conds[0], conds[1], conds[2:]...), nil
	}
}

// terms splits long value lists into ORed IN groups of at most
// maxInOperands values.
func terms(t filter.Terms) expression.ConditionBuilder {
	name := expression.Name(t.Field)
	if len(t.Values) == 0 {
		return alwaysFalse()
	}
	var groups []expression.ConditionBuilder
	for values := range slices.Chunk(t.Values, maxInOperands) {
		groups = append(groups, in(name, values))
	}
	if len(groups) == 1 {
		return groups[0]
	}
	return expression.Or(groups[0], groups[1], groups[2:]...)
}

func in(name expression.NameBuilder, values []any) expression.ConditionBuilder {
	if len(values) == 1 {
		return name.Equal(expression.Value(values[0]))
	}
	rest := make([]expression.OperandBuilder, 0, len(values)-1)
	for _, v := range values[1:] {
		rest = append(rest, expression.Value(v))
	}
	return name.In(expression.Value(values[0]), rest...)
}

func rangeCondition(r filter.Range) expression.ConditionBuilder {
	name := expression.Name(r.Field)
	var conds []expression.ConditionBuilder
	if r.Lower.Value != nil {
		if r.Lower.Inclusive {
			conds = append(conds, name.GreaterThanEqual(expression.Value(r.Lower.Value)))
		} else {
			conds = append(conds, name.GreaterThan(expression.Value(r.Lower.Value)))
		}
	}
	if r.Upper.Value != nil {
		if r.Upper.Inclusive {
			conds = append(conds, name.LessThanEqual(expression.Value(r.Upper.Value)))
		} else {
			conds = append(conds, name.LessThan(expression.Value(r.Upper.Value)))
		}
	}
	switch len(conds) {
	case 0:
		return expression.AttributeExists(name)
	case 1:
		return conds[0]
	default:
		return conds[0].And(conds[1])
	}
}
