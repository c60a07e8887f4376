package graph

import (
	"fmt"
	"strings"
)

// Direction is the side of an edge a traversal walks from.
type Direction int

const (
	// DirectionOut matches edges whose outgoing endpoint is in the vertex set.
	DirectionOut Direction = iota
	// DirectionIn matches edges whose incoming endpoint is in the vertex set.
	DirectionIn
	// DirectionBoth matches edges touching the vertex set on either side.
	DirectionBoth
)

func (d Direction) String() string {
	switch d {
	case DirectionOut:
		return "out"
	case DirectionIn:
		return "in"
	case DirectionBoth:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Opposite returns the direction seen from the other endpoint.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionOut:
		return DirectionIn
	case DirectionIn:
		return DirectionOut
	default:
		return d
	}
}

// ParseDirection parses "in", "out" or "both" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "out":
		return DirectionOut, nil
	case "in":
		return DirectionIn, nil
	case "both":
		return DirectionBoth, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}
