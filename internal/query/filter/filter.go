// Package filter defines the backend-neutral boolean filter tree and the
// compiler that builds it from traversal predicates.
package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a node of the boolean filter tree.
type Filter interface {
	// Canonical renders the node in a form where sibling order does not matter.
	Canonical() string
	isFilter()
}

// And matches when every child matches. An And without children matches
// every document.
type And struct {
	Filters []Filter
}

// Or matches when at least one child matches. An Or without children matches
// nothing.
type Or struct {
	Filters []Filter
}

// Not negates its child.
type Not struct {
	Filter Filter
}

// Terms matches documents whose field equals one of Values. Empty Values match nothing.
type Terms struct {
	Field  string
	Values []any
}

// Bound is one end of a Range; a nil Value leaves that end open.
type Bound struct {
	Value     any
	Inclusive bool
}

// Range matches documents whose field lies between Lower and Upper.
type Range struct {
	Field string
	Lower Bound
	Upper Bound
}

// Exists matches documents carrying a non-null value for Field.
type Exists struct {
	Field string
}

// Prefix matches string fields starting with Value.
type Prefix struct {
	Field string
	Value string
}

// Contains matches string fields containing Value as a substring, or
// collection fields holding Value as an element.
type Contains struct {
	Field string
	Value any
}

func (And) isFilter()      {}
func (Or) isFilter()       {}
func (Not) isFilter()      {}
func (Terms) isFilter()    {}
func (Range) isFilter()    {}
func (Exists) isFilter()   {}
func (Prefix) isFilter()   {}
func (Contains) isFilter() {}

// MatchAll returns the filter matching every document.
func MatchAll() Filter { return And{} }

// IsMatchAll reports whether f is a childless And.
func IsMatchAll(f Filter) bool {
	a, ok := f.(And)
	return ok && len(a.Filters) == 0
}

func (f And) Canonical() string { return "and(" + canonicalChildren(f.Filters) + ")" }
func (f Or) Canonical() string  { return "or(" + canonicalChildren(f.Filters) + ")" }
func (f Not) Canonical() string { return "not(" + f.Filter.Canonical() + ")" }

func (f Terms) Canonical() string {
	values := make([]string, len(f.Values))
	for i, v := range f.Values {
		values[i] = literal(v)
	}
	sort.Strings(values)
	return fmt.Sprintf("terms(%s:[%s])", f.Field, strings.Join(values, ","))
}

func (f Range) Canonical() string {
	lower, upper := "(-inf", "+inf)"
	if f.Lower.Value != nil {
		lower = "(" + literal(f.Lower.Value)
		if f.Lower.Inclusive {
			lower = "[" + literal(f.Lower.Value)
		}
	}
	if f.Upper.Value != nil {
		upper = literal(f.Upper.Value) + ")"
		if f.Upper.Inclusive {
			upper = literal(f.Upper.Value) + "]"
		}
	}
	return fmt.Sprintf("range(%s:%s,%s)", f.Field, lower, upper)
}

func (f Exists) Canonical() string   { return "exists(" + f.Field + ")" }
func (f Prefix) Canonical() string   { return fmt.Sprintf("prefix(%s:%q)", f.Field, f.Value) }
func (f Contains) Canonical() string { return fmt.Sprintf("contains(%s:%s)", f.Field, literal(f.Value)) }

// String renders the tree in its canonical form.
func String(f Filter) string {
	if f == nil {
		return "<nil>"
	}
	return f.Canonical()
}

// Equivalent reports whether two trees have the same boolean shape and the
// same set of leaves, ignoring sibling order.
func Equivalent(a, b Filter) bool {
	return String(a) == String(b)
}

func canonicalChildren(children []Filter) string {
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = c.Canonical()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func literal(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if n, ok := toFloat(v); ok {
		return fmt.Sprintf("%g", n)
	}
	return fmt.Sprintf("%v", v)
}
