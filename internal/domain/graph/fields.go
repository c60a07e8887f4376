package graph

// Predicate keys addressing structural attributes rather than properties.
const (
	KeyID    = "~id"
	KeyLabel = "~label"
)

// Reserved document fields. Every stored edge carries the four endpoint
// fields; they are never exposed as properties.
const (
	FieldID       = "_id"
	FieldLabel    = "_label"
	FieldOutID    = "outId"
	FieldOutLabel = "outLabel"
	FieldInID     = "inId"
	FieldInLabel  = "inLabel"
)

var reservedFields = map[string]struct{}{
	FieldID:       {},
	FieldLabel:    {},
	FieldOutID:    {},
	FieldOutLabel: {},
	FieldInID:     {},
	FieldInLabel:  {},
}

// IsReservedField reports whether name is a structural document field.
func IsReservedField(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

// DocumentField maps a predicate key onto the document field it constrains.
func DocumentField(key string) string {
	switch key {
	case KeyID:
		return FieldID
	case KeyLabel:
		return FieldLabel
	default:
		return key
	}
}
