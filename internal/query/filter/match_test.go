package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	doc := map[string]any{
		"name":   "marko",
		"age":    int64(29),
		"weight": 0.5,
		"tags":   []any{"a", "b"},
		"nil":    nil,
	}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"match all", MatchAll(), true},
		{"empty or", Or{}, false},
		{"terms hit", Terms{Field: "name", Values: []any{"josh", "marko"}}, true},
		{"terms numeric normalisation", Terms{Field: "age", Values: []any{29}}, true},
		{"terms miss", Terms{Field: "name", Values: []any{"josh"}}, false},
		{"terms empty", Terms{Field: "name"}, false},
		{"terms missing field", Terms{Field: "missing", Values: []any{"x"}}, false},
		{"range inclusive", Range{Field: "age", Lower: Bound{Value: 29, Inclusive: true}}, true},
		{"range exclusive", Range{Field: "age", Lower: Bound{Value: 29}}, false},
		{"range both ends", Range{Field: "weight", Lower: Bound{Value: 0.1}, Upper: Bound{Value: 0.9}}, true},
		{"range upper exclusive", Range{Field: "weight", Upper: Bound{Value: 0.5}}, false},
		{"range strings", Range{Field: "name", Lower: Bound{Value: "m", Inclusive: true}}, true},
		{"range incomparable", Range{Field: "name", Lower: Bound{Value: 1}}, false},
		{"exists", Exists{Field: "name"}, true},
		{"exists nil", Exists{Field: "nil"}, false},
		{"prefix", Prefix{Field: "name", Value: "ma"}, true},
		{"prefix non-string", Prefix{Field: "age", Value: "2"}, false},
		{"contains substring", Contains{Field: "name", Value: "rk"}, true},
		{"contains element", Contains{Field: "tags", Value: "b"}, true},
		{"contains miss", Contains{Field: "tags", Value: "z"}, false},
		{"not", Not{Filter: Exists{Field: "missing"}}, true},
		{"and", And{Filters: []Filter{Exists{Field: "name"}, Exists{Field: "missing"}}}, false},
		{"or", Or{Filters: []Filter{Exists{Field: "missing"}, Exists{Field: "name"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.f, doc))
		})
	}
}

func TestNumber(t *testing.T) {
	n, ok := Number(uint8(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	_, ok = Number("3")
	assert.False(t, ok)
}
