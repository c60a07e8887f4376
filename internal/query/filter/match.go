package filter

import (
	"reflect"
	"strings"
)

// Match evaluates f against a flat document. It is the reference semantics
// used by the embedded backends; the DynamoDB backend evaluates the same tree
// server-side through condition expressions.
func Match(f Filter, doc map[string]any) bool {
	switch n := f.(type) {
	case And:
		for _, c := range n.Filters {
			if !Match(c, doc) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range n.Filters {
			if Match(c, doc) {
				return true
			}
		}
		return false
	case Not:
		return !Match(n.Filter, doc)
	case Terms:
		v, ok := doc[n.Field]
		if !ok {
			return false
		}
		for _, want := range n.Values {
			if equal(v, want) {
				return true
			}
		}
		return false
	case Range:
		v, ok := doc[n.Field]
		if !ok || v == nil {
			return false
		}
		if n.Lower.Value != nil {
			c, ok := compare(v, n.Lower.Value)
			if !ok || c < 0 || (c == 0 && !n.Lower.Inclusive) {
				return false
			}
		}
		if n.Upper.Value != nil {
			c, ok := compare(v, n.Upper.Value)
			if !ok || c > 0 || (c == 0 && !n.Upper.Inclusive) {
				return false
			}
		}
		return true
	case Exists:
		v, ok := doc[n.Field]
		return ok && v != nil
	case Prefix:
		s, ok := doc[n.Field].(string)
		return ok && strings.HasPrefix(s, n.Value)
	case Contains:
		return contains(doc[n.Field], n.Value)
	default:
		return false
	}
}

func contains(v, want any) bool {
	if s, ok := v.(string); ok {
		sub, ok := want.(string)
		return ok && strings.Contains(s, sub)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equal(rv.Index(i).Interface(), want) {
			return true
		}
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two scalars of the same family (numbers or strings).
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Number converts any Go numeric value to float64.
func Number(v any) (float64, bool) {
	return toFloat(v)
}
