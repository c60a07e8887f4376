package graph

import (
	"fmt"
	"strconv"

	apperrors "github.com/ozadari/unipop/internal/errors"
)

// Assembler turns a stored document (id, label, flat field map) into an element.
// There is one implementation per element kind, both reading the same
// reserved-field table.
type Assembler[T Element] interface {
	Kind() ElementKind
	Assemble(id, label string, fields map[string]any) (T, error)
}

// EdgeAssembler builds edges, resolving both endpoints through a VertexResolver.
type EdgeAssembler struct {
	resolver VertexResolver
}

// NewEdgeAssembler creates an edge assembler. A nil resolver falls back to
// ReferenceResolver.
func NewEdgeAssembler(resolver VertexResolver) *EdgeAssembler {
	if resolver == nil {
		resolver = ReferenceResolver
	}
	return &EdgeAssembler{resolver: resolver}
}

// Kind returns KindEdge.
func (a *EdgeAssembler) Kind() ElementKind { return KindEdge }

// Assemble resolves the out and in endpoints, then attaches every
// non-reserved field as a local property. Unknown fields are kept as
// properties. A missing endpoint field fails with MALFORMED_RECORD.
func (a *EdgeAssembler) Assemble(id, label string, fields map[string]any) (*Edge, error) {
	if id == "" {
		return nil, apperrors.MalformedRecord(id, FieldID)
	}

	outID, err := requiredString(id, fields, FieldOutID)
	if err != nil {
		return nil, err
	}
	outLabel, err := requiredString(id, fields, FieldOutLabel)
	if err != nil {
		return nil, err
	}
	inID, err := requiredString(id, fields, FieldInID)
	if err != nil {
		return nil, err
	}
	inLabel, err := requiredString(id, fields, FieldInLabel)
	if err != nil {
		return nil, err
	}

	edge := &Edge{
		id:         id,
		label:      label,
		outVertex:  a.resolver.Resolve(outID, outLabel, DirectionOut),
		inVertex:   a.resolver.Resolve(inID, inLabel, DirectionIn),
		properties: make(properties, len(fields)),
	}
	for k, v := range fields {
		if IsReservedField(k) {
			continue
		}
		edge.SetPropertyLocal(k, v)
	}
	return edge, nil
}

// VertexAssembler builds vertices; every non-reserved field becomes a property.
type VertexAssembler struct{}

// Kind returns KindVertex.
func (VertexAssembler) Kind() ElementKind { return KindVertex }

// Assemble constructs the vertex.
func (VertexAssembler) Assemble(id, label string, fields map[string]any) (*Vertex, error) {
	if id == "" {
		return nil, apperrors.MalformedRecord(id, FieldID)
	}
	v := &Vertex{id: id, label: label, properties: make(properties, len(fields))}
	for k, val := range fields {
		if IsReservedField(k) {
			continue
		}
		v.SetPropertyLocal(k, val)
	}
	return v, nil
}

// requiredString reads a mandatory reserved field. Identifiers stored as
// numbers by other writers are accepted and formatted canonically.
func requiredString(id string, fields map[string]any, field string) (string, error) {
	raw, ok := fields[field]
	if !ok || raw == nil {
		return "", apperrors.MalformedRecord(id, field)
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", apperrors.MalformedRecord(id, field)
	}
	if s == "" {
		return "", apperrors.MalformedRecord(id, field)
	}
	return s, nil
}

var (
	_ Assembler[*Edge]   = (*EdgeAssembler)(nil)
	_ Assembler[*Vertex] = VertexAssembler{}
)
