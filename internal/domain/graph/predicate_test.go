package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicates_Limit(t *testing.T) {
	tests := []struct {
		name string
		p    Predicates
		want int
	}{
		{"zero value is unbounded", Predicates{}, NoLimit},
		{"constructor is unbounded", NewPredicates(Eq("a", 1)), NoLimit},
		{"max int is unbounded", Predicates{LimitHigh: math.MaxInt}, NoLimit},
		{"range", NewPredicates().WithRange(2, 6), 4},
		{"empty range", NewPredicates().WithRange(5, 5), 0},
		{"limit zero", NewPredicates().WithRange(0, 0), 0},
		{"limit zero on zero value", Predicates{}.WithRange(0, 0), 0},
		{"inverted range", NewPredicates().WithRange(5, 2), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Limit())
		})
	}
}

func TestPredicates_WithDoesNotAlias(t *testing.T) {
	base := NewPredicates(Eq("a", 1))
	base.Has = append(make([]Predicate, 0, 4), base.Has...)

	extended := base.With(LabelWithin("knows"))

	assert.Len(t, base.Has, 1)
	require.Len(t, extended.Has, 2)
	assert.Equal(t, KeyLabel, extended.Has[1].Key)
	assert.Equal(t, []any{"knows"}, extended.Has[1].Value)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"in": DirectionIn, "OUT": DirectionOut, " both ": DirectionBoth} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseDirection("sideways")
	assert.Error(t, err)

	assert.Equal(t, DirectionIn, DirectionOut.Opposite())
	assert.Equal(t, DirectionBoth, DirectionBoth.Opposite())
}

func TestDocumentField(t *testing.T) {
	assert.Equal(t, FieldLabel, DocumentField(KeyLabel))
	assert.Equal(t, FieldID, DocumentField(KeyID))
	assert.Equal(t, "weight", DocumentField("weight"))
	assert.True(t, IsReservedField(FieldInID))
	assert.False(t, IsReservedField("weight"))
}
