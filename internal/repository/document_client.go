// Package repository defines the document backend port the query engine
// runs against, together with the paging and retry helpers shared by the
// backend implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/filter"
)

// Visibility selects whether a request must see writes that are not yet
// refreshed into the searchable view.
type Visibility int

const (
	// VisibilityCommitted reads only refreshed (committed) writes.
	VisibilityCommitted Visibility = iota
	// VisibilityRefresh refreshes before reading, or after writing.
	VisibilityRefresh
)

func (v Visibility) String() string {
	if v == VisibilityRefresh {
		return "refresh"
	}
	return "committed"
}

// ParseVisibility parses "committed" or "refresh".
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(s) {
	case "", "committed":
		return VisibilityCommitted, nil
	case "refresh":
		return VisibilityRefresh, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}

// Record is a raw stored document: identifier, label and flat field map.
type Record struct {
	ID     string
	Label  string
	Fields map[string]any
}

// Document returns the fields merged with the reserved id and label fields,
// which is the shape filters are evaluated against.
func (r Record) Document(idField, labelField string) map[string]any {
	doc := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc[idField] = r.ID
	doc[labelField] = r.Label
	return doc
}

// SearchRequest asks for one page of documents matching Filter.
type SearchRequest struct {
	Index  string
	Filter filter.Filter
	// Offset is the number of matches to skip; only used when Cursor is empty.
	Offset   int
	PageSize int
	// Cursor continues a previous page. Empty starts a new search.
	Cursor     string
	Visibility Visibility
}

// SearchPage is one page of matches.
type SearchPage struct {
	Records []Record
	HasMore bool
	// Cursor continues the search; empty when HasMore is false.
	Cursor string
}

// ErrConflict is returned by Create when the identifier already exists.
var ErrConflict = errors.New("document already exists")

// DocumentClient is the backend document client. Implementations must be
// safe for concurrent use.
type DocumentClient interface {
	// LookupMany fetches documents by id in a single round trip. Missing ids
	// are simply absent from the result.
	LookupMany(ctx context.Context, index string, ids []string, visibility Visibility) ([]Record, error)

	// Search returns one page of matches.
	Search(ctx context.Context, req SearchRequest) (SearchPage, error)

	// Create stores a new document, failing with ErrConflict when the id exists.
	Create(ctx context.Context, index string, record Record, visibility Visibility) error

	// Aggregate groups the documents matching f and reduces each group.
	Aggregate(ctx context.Context, index string, f filter.Filter, spec aggregation.Spec, visibility Visibility) (map[string]any, error)
}

// CursorReleaser is implemented by clients holding server-side cursor state.
type CursorReleaser interface {
	ReleaseCursor(ctx context.Context, cursor string) error
}

// ReleaseCursor releases cursor on client when supported. It is a no-op for
// stateless clients or empty cursors.
func ReleaseCursor(ctx context.Context, client DocumentClient, cursor string) error {
	if cursor == "" {
		return nil
	}
	if r, ok := client.(CursorReleaser); ok {
		return r.ReleaseCursor(ctx, cursor)
	}
	return nil
}
