package badgerstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/query/filter"
	"github.com/ozadari/unipop/internal/repository"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func edgeRecord(i int, group string) repository.Record {
	return repository.Record{
		ID:    fmt.Sprintf("e%d", i),
		Label: "knows",
		Fields: map[string]any{
			graph.FieldOutID: "v0", graph.FieldOutLabel: "person",
			graph.FieldInID: fmt.Sprintf("v%d", i), graph.FieldInLabel: "person",
			"group": group, "weight": i,
		},
	}
}

func TestStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Create(ctx, "edges", edgeRecord(1, "a"), repository.VisibilityRefresh))
	err := s.Create(ctx, "edges", edgeRecord(1, "a"), repository.VisibilityRefresh)
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.LookupMany(ctx, "edges", []string{"e1", "missing"}, repository.VisibilityCommitted)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "knows", got[0].Label)
	assert.Equal(t, "v1", got[0].Fields[graph.FieldInID])
	assert.Equal(t, int64(1), got[0].Fields["weight"], "integers decode loosely as int64")

	got, err = s.LookupMany(ctx, "other", []string{"e1"}, repository.VisibilityCommitted)
	require.NoError(t, err)
	assert.Empty(t, got, "indices do not share keys")
}

func TestStore_SearchPages(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Create(ctx, "edges", edgeRecord(i, "a"), repository.VisibilityCommitted))
	}

	req := repository.SearchRequest{Index: "edges", Filter: filter.MatchAll(), PageSize: 2}
	var seen []string
	pages := 0
	for {
		page, err := s.Search(ctx, req)
		require.NoError(t, err)
		pages++
		for _, r := range page.Records {
			seen = append(seen, r.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.Cursor)
			break
		}
		req.Cursor = page.Cursor
	}

	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, seen)
	assert.Equal(t, 3, pages)
}

func TestStore_SearchFilterOffset(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for i := 1; i <= 5; i++ {
		group := "a"
		if i%2 == 0 {
			group = "b"
		}
		require.NoError(t, s.Create(ctx, "edges", edgeRecord(i, group), repository.VisibilityCommitted))
	}

	page, err := s.Search(ctx, repository.SearchRequest{
		Index:    "edges",
		Filter:   filter.Terms{Field: "group", Values: []any{"a"}},
		Offset:   1,
		PageSize: 10,
	})

	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "e3", page.Records[0].ID)
	assert.Equal(t, "e5", page.Records[1].ID)
	assert.False(t, page.HasMore)
}

func TestStore_ScrollThroughExecutor(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Create(ctx, "edges", edgeRecord(i, "a"), repository.VisibilityCommitted))
	}
	assembler := graph.NewEdgeAssembler(nil)
	convert := func(r repository.Record) (*graph.Edge, error) {
		return assembler.Assemble(r.ID, r.Label, r.Fields)
	}

	it := executor.Scroll(ctx, executor.New(s), executor.ScrollRequest{Index: "edges", PageSize: 2, Limit: 3}, convert)
	edges, err := executor.Collect(it)

	require.NoError(t, err)
	require.Len(t, edges, 3)
	assert.Equal(t, "v3", edges[2].InVertex().ID())
	assert.Equal(t, 2, it.Pages())
}

func TestStore_Aggregate(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for i, group := range []string{"a", "a", "b", "a", "b", "a"} {
		require.NoError(t, s.Create(ctx, "edges", edgeRecord(i+1, group), repository.VisibilityCommitted))
	}

	got, err := s.Aggregate(ctx, "edges", nil, aggregation.Spec{GroupBy: "group", Reducer: aggregation.ReduceCount}, repository.VisibilityCommitted)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(4), "b": int64(2)}, got)

	got, err = s.Aggregate(ctx, "edges", nil, aggregation.Spec{GroupBy: "group", Value: "weight", Reducer: aggregation.ReduceMax}, repository.VisibilityCommitted)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 6.0, "b": 5.0}, got)
}

func TestStore_Closed(t *testing.T) {
	s, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.LookupMany(context.Background(), "edges", []string{"e1"}, repository.VisibilityCommitted)
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_RejectsIndexWithSlash(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	require.NoError(t, s.Create(ctx, "a", edgeRecord(1, "x"), repository.VisibilityCommitted))

	err := s.Create(ctx, "a/b", edgeRecord(2, "x"), repository.VisibilityCommitted)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = s.Search(ctx, repository.SearchRequest{Index: "a/", PageSize: 10})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = s.LookupMany(ctx, "", []string{"e1"}, repository.VisibilityCommitted)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	page, err := s.Search(ctx, repository.SearchRequest{Index: "a", Filter: filter.MatchAll(), PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "e1", page.Records[0].ID)
}
