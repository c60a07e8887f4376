// Package graph holds the graph-side model of the engine: elements, vertex
// handles, predicates and the assemblers turning stored documents into
// elements.
package graph

import (
	"sort"

	apperrors "github.com/ozadari/unipop/internal/errors"
)

// ElementKind tags the two element variants.
type ElementKind string

const (
	KindEdge   ElementKind = "edge"
	KindVertex ElementKind = "vertex"
)

// Property is one user-defined key/value pair of an element.
type Property struct {
	Key   string
	Value any
}

// Element is the behaviour shared by edges and vertices.
type Element interface {
	ID() string
	Label() string
	Kind() ElementKind
	Property(key string) (any, bool)
	// Properties returns the user-defined properties ordered by key.
	Properties() []Property
}

// VertexHandle references a vertex owned by the vertex-resolution collaborator.
type VertexHandle interface {
	ID() string
	Label() string
}

// VertexResolver turns an endpoint reference into a vertex handle.
type VertexResolver interface {
	Resolve(id, label string, direction Direction) VertexHandle
}

// VertexResolverFunc adapts a function to VertexResolver.
type VertexResolverFunc func(id, label string, direction Direction) VertexHandle

// Resolve calls f.
func (f VertexResolverFunc) Resolve(id, label string, direction Direction) VertexHandle {
	return f(id, label, direction)
}

// VertexRef is a lightweight vertex handle: identifier, label and the
// direction it was discovered from.
type VertexRef struct {
	id        string
	label     string
	direction Direction
}

// NewVertexRef creates a vertex reference.
func NewVertexRef(id, label string, direction Direction) VertexRef {
	return VertexRef{id: id, label: label, direction: direction}
}

func (v VertexRef) ID() string           { return v.id }
func (v VertexRef) Label() string        { return v.label }
func (v VertexRef) Direction() Direction { return v.direction }

// ReferenceResolver resolves endpoints to plain VertexRef handles.
var ReferenceResolver VertexResolver = VertexResolverFunc(func(id, label string, direction Direction) VertexHandle {
	return NewVertexRef(id, label, direction)
})

// properties is the property table shared by both element kinds.
type properties map[string]any

func (p properties) get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

func (p properties) sorted() []Property {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Property, len(keys))
	for i, k := range keys {
		out[i] = Property{Key: k, Value: p[k]}
	}
	return out
}

// ============================================================================
// EDGE
// ============================================================================

// Edge is a labelled connection between two vertices.
type Edge struct {
	id         string
	label      string
	outVertex  VertexHandle
	inVertex   VertexHandle
	properties properties
}

// NewEdge validates and constructs an edge. Property keys may not shadow
// reserved document fields.
func NewEdge(id, label string, outVertex, inVertex VertexHandle, props map[string]any) (*Edge, error) {
	switch {
	case id == "":
		return nil, apperrors.InvalidInput("edge id is required")
	case label == "":
		return nil, apperrors.InvalidInput("edge label is required")
	case outVertex == nil || outVertex.ID() == "":
		return nil, apperrors.InvalidInput("outgoing vertex is required")
	case inVertex == nil || inVertex.ID() == "":
		return nil, apperrors.InvalidInput("incoming vertex is required")
	}

	e := &Edge{
		id:         id,
		label:      label,
		outVertex:  outVertex,
		inVertex:   inVertex,
		properties: make(properties, len(props)),
	}
	for k, v := range props {
		if IsReservedField(k) {
			return nil, apperrors.InvalidInput("property key " + k + " is reserved")
		}
		e.properties[k] = v
	}
	return e, nil
}

func (e *Edge) ID() string                      { return e.id }
func (e *Edge) Label() string                   { return e.label }
func (e *Edge) Kind() ElementKind               { return KindEdge }
func (e *Edge) OutVertex() VertexHandle         { return e.outVertex }
func (e *Edge) InVertex() VertexHandle          { return e.inVertex }
func (e *Edge) Property(key string) (any, bool) { return e.properties.get(key) }
func (e *Edge) Properties() []Property          { return e.properties.sorted() }

// Vertex returns the endpoint on the given side; DirectionBoth is not a side.
func (e *Edge) Vertex(d Direction) (VertexHandle, bool) {
	switch d {
	case DirectionOut:
		return e.outVertex, true
	case DirectionIn:
		return e.inVertex, true
	default:
		return nil, false
	}
}

// SetPropertyLocal attaches a property to this in-memory edge only.
// Nothing is written back to the backend.
func (e *Edge) SetPropertyLocal(key string, value any) {
	e.properties[key] = value
}

// Fields returns the stored field representation: every property plus the
// four endpoint fields. Id and label travel as document metadata.
func (e *Edge) Fields() map[string]any {
	fields := make(map[string]any, len(e.properties)+4)
	for k, v := range e.properties {
		fields[k] = v
	}
	fields[FieldOutID] = e.outVertex.ID()
	fields[FieldOutLabel] = e.outVertex.Label()
	fields[FieldInID] = e.inVertex.ID()
	fields[FieldInLabel] = e.inVertex.Label()
	return fields
}

// ============================================================================
// VERTEX
// ============================================================================

// Vertex is a vertex element assembled from a stored document.
type Vertex struct {
	id         string
	label      string
	properties properties
}

func (v *Vertex) ID() string                      { return v.id }
func (v *Vertex) Label() string                   { return v.label }
func (v *Vertex) Kind() ElementKind               { return KindVertex }
func (v *Vertex) Property(key string) (any, bool) { return v.properties.get(key) }
func (v *Vertex) Properties() []Property          { return v.properties.sorted() }

// SetPropertyLocal attaches a property to this in-memory vertex only.
func (v *Vertex) SetPropertyLocal(key string, value any) {
	v.properties[key] = value
}

var (
	_ Element      = (*Edge)(nil)
	_ Element      = (*Vertex)(nil)
	_ VertexHandle = (*Vertex)(nil)
	_ VertexHandle = VertexRef{}
)
