package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/domain/graph"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/infrastructure/persistence/memory"
	"github.com/ozadari/unipop/internal/query/aggregation"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/repository"
	"github.com/ozadari/unipop/internal/repository/mocks"
)

func edgeRecord(id, label, out, in string, props map[string]any) repository.Record {
	fields := map[string]any{
		graph.FieldOutID: out, graph.FieldOutLabel: "person",
		graph.FieldInID: in, graph.FieldInLabel: "person",
	}
	for k, v := range props {
		fields[k] = v
	}
	return repository.Record{ID: id, Label: label, Fields: fields}
}

func newService(t *testing.T, records ...repository.Record) (*EdgeQueryService, *memory.Store, *settings.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, r := range records {
		require.NoError(t, store.Create(context.Background(), "edges", r, repository.VisibilityRefresh))
	}
	cfg := settings.NewStore(settings.Settings{Index: "edges", PageSize: 2})
	return NewEdgeQueryService(executor.New(store), nil, nil, cfg, nil), store, cfg
}

func edgeIDs(edges []*graph.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID()
	}
	return out
}

func graphFixture() []repository.Record {
	return []repository.Record{
		edgeRecord("E1", "knows", "v1", "v2", map[string]any{"weight": 1.0}),
		edgeRecord("E2", "likes", "v3", "v1", map[string]any{"weight": 2.0}),
		edgeRecord("E3", "knows", "v2", "v3", map[string]any{"weight": 3.0}),
		edgeRecord("E4", "knows", "v1", "v1", map[string]any{"weight": 4.0}),
	}
}

func TestLookupEdges(t *testing.T) {
	svc, _, _ := newService(t, graphFixture()...)
	ctx := context.Background()

	t.Run("returns one edge per id", func(t *testing.T) {
		edges, err := svc.LookupEdges(ctx, LookupEdgesQuery{IDs: []string{"E3", "E1", "E3"}})

		require.NoError(t, err)
		assert.Equal(t, []string{"E3", "E1"}, edgeIDs(edges))
		assert.Equal(t, "v2", edges[0].OutVertex().ID())
		assert.Equal(t, "v3", edges[0].InVertex().ID())
	})

	t.Run("missing id fails the call", func(t *testing.T) {
		_, err := svc.LookupEdges(ctx, LookupEdgesQuery{IDs: []string{"E1", "E2", "C"}})

		require.Error(t, err)
		assert.True(t, apperrors.IsElementNotFound(err))
	})

	t.Run("blank id is rejected", func(t *testing.T) {
		_, err := svc.LookupEdges(ctx, LookupEdgesQuery{IDs: []string{" "}})

		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
	})
}

func TestScanEdges(t *testing.T) {
	vertexDoc := repository.Record{ID: "V9", Label: "person", Fields: map[string]any{"weight": 9.0}}
	svc, _, _ := newService(t, append(graphFixture(), vertexDoc)...)
	ctx := context.Background()

	t.Run("skips documents that are not edges", func(t *testing.T) {
		it, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: graph.NewPredicates()})
		require.NoError(t, err)

		edges, err := executor.Collect(it)

		require.NoError(t, err)
		assert.Equal(t, []string{"E1", "E2", "E3", "E4"}, edgeIDs(edges))
	})

	t.Run("applies predicates and range", func(t *testing.T) {
		p := graph.NewPredicates(graph.Has("weight", graph.OpGte, 2.0)).WithRange(0, 2)
		it, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: p})
		require.NoError(t, err)

		edges, err := executor.Collect(it)

		require.NoError(t, err)
		assert.Equal(t, []string{"E2", "E3"}, edgeIDs(edges))
	})

	t.Run("empty range returns nothing", func(t *testing.T) {
		it, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: graph.NewPredicates().WithRange(0, 0)})
		require.NoError(t, err)

		edges, err := executor.Collect(it)

		require.NoError(t, err)
		assert.Empty(t, edges)
	})

	t.Run("unsupported predicate fails before any request", func(t *testing.T) {
		_, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: graph.NewPredicates(graph.Has("name", "regex", "^a"))})

		assert.True(t, apperrors.IsUnsupportedPredicate(err))
	})
}

func TestScanEdges_MalformedRecordDoesNotAbort(t *testing.T) {
	broken := repository.Record{ID: "E0", Label: "knows", Fields: map[string]any{
		graph.FieldOutID: "v1", graph.FieldInID: "v2", graph.FieldInLabel: "person",
	}}
	svc, _, _ := newService(t, broken, edgeRecord("E1", "knows", "v1", "v2", nil))

	it, err := svc.ScanEdges(context.Background(), ScanEdgesQuery{Predicates: graph.NewPredicates()})
	require.NoError(t, err)

	var got []string
	var failures int
	for edge, err := range it.All() {
		if err != nil {
			assert.True(t, apperrors.IsMalformedRecord(err))
			failures++
			continue
		}
		got = append(got, edge.ID())
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, []string{"E1"}, got)
}

func TestAdjacentEdges(t *testing.T) {
	svc, _, _ := newService(t, graphFixture()...)
	ctx := context.Background()

	tests := []struct {
		name  string
		query AdjacentEdgesQuery
		want  []string
	}{
		{
			name:  "out",
			query: AdjacentEdgesQuery{VertexIDs: []string{"v1"}, Direction: graph.DirectionOut},
			want:  []string{"E1", "E4"},
		},
		{
			name:  "in",
			query: AdjacentEdgesQuery{VertexIDs: []string{"v1"}, Direction: graph.DirectionIn},
			want:  []string{"E2", "E4"},
		},
		{
			name:  "both is the union and a self-loop appears once",
			query: AdjacentEdgesQuery{VertexIDs: []string{"v1"}, Direction: graph.DirectionBoth},
			want:  []string{"E1", "E2", "E4"},
		},
		{
			name:  "label restriction",
			query: AdjacentEdgesQuery{VertexIDs: []string{"v1"}, Direction: graph.DirectionBoth, Labels: []string{"likes"}},
			want:  []string{"E2"},
		},
		{
			name: "predicates and limit",
			query: AdjacentEdgesQuery{
				VertexIDs:  []string{"v1", "v2"},
				Direction:  graph.DirectionOut,
				Predicates: graph.NewPredicates(graph.Has("weight", graph.OpGt, 1.0)).WithRange(0, 1),
			},
			want: []string{"E3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := svc.AdjacentEdges(ctx, tt.query)
			require.NoError(t, err)

			edges, err := executor.Collect(it)

			require.NoError(t, err)
			assert.Equal(t, tt.want, edgeIDs(edges))
		})
	}
}

func TestAdjacentEdges_EmptyVertexSetIssuesNoRequest(t *testing.T) {
	client := &mocks.DocumentClient{}
	cfg := settings.NewStore(settings.Settings{Index: "edges", PageSize: 10})
	svc := NewEdgeQueryService(executor.New(client), nil, nil, cfg, nil)

	it, err := svc.AdjacentEdges(context.Background(), AdjacentEdgesQuery{Direction: graph.DirectionBoth})
	require.NoError(t, err)
	edges, err := executor.Collect(it)

	require.NoError(t, err)
	assert.Empty(t, edges)
	client.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestAggregate(t *testing.T) {
	svc, _, _ := newService(t,
		edgeRecord("E1", "knows", "v1", "v2", map[string]any{"k": "a", "v": 1.0}),
		edgeRecord("E2", "knows", "v1", "v3", map[string]any{"k": "a", "v": 3.0}),
		edgeRecord("E3", "knows", "v2", "v3", map[string]any{"k": "b", "v": 2.0}),
		edgeRecord("E4", "likes", "v2", "v3", map[string]any{"k": "b", "v": 10.0}),
	)
	ctx := context.Background()
	knows := []graph.Predicate{graph.LabelWithin("knows")}

	t.Run("sum", func(t *testing.T) {
		d := aggregation.NewDescriptor(knows,
			aggregation.GroupBy{Field: "k"},
			aggregation.ValuesOf{Field: "v"},
			aggregation.ReduceWith{Reducer: aggregation.ReduceSum})

		result, err := svc.Aggregate(ctx, AggregateEdgesQuery{Descriptor: d})

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 4.0, "b": 2.0}, result)
	})

	t.Run("count by label", func(t *testing.T) {
		d := aggregation.NewDescriptor(nil,
			aggregation.GroupBy{Field: graph.KeyLabel},
			nil,
			aggregation.ReduceWith{Reducer: aggregation.ReduceCount})

		result, err := svc.Aggregate(ctx, AggregateEdgesQuery{Descriptor: d})

		require.NoError(t, err)
		assert.Equal(t, map[string]any{"knows": int64(3), "likes": int64(1)}, result)
	})

	t.Run("unknown reducer", func(t *testing.T) {
		d := aggregation.NewDescriptor(nil,
			aggregation.GroupBy{Field: "k"},
			aggregation.ValuesOf{Field: "v"},
			aggregation.ReduceWith{Reducer: "median"})

		_, err := svc.Aggregate(ctx, AggregateEdgesQuery{Descriptor: d})

		assert.True(t, apperrors.HasCode(err, apperrors.CodeUnsupportedAggregation))
	})
}

func TestAggregate_BackendFailure(t *testing.T) {
	client := &mocks.DocumentClient{}
	client.On("Aggregate", mock.Anything, "edges", mock.Anything, mock.Anything, repository.VisibilityCommitted).
		Return(nil, errors.New("connection reset"))
	cfg := settings.NewStore(settings.Settings{Index: "edges", PageSize: 10})
	svc := NewEdgeQueryService(executor.New(client), nil, nil, cfg, nil)
	d := aggregation.NewDescriptor(nil, aggregation.GroupBy{Field: "k"}, nil, aggregation.ReduceWith{Reducer: aggregation.ReduceCount})

	_, err := svc.Aggregate(context.Background(), AggregateEdgesQuery{Descriptor: d})

	assert.True(t, apperrors.IsBackendUnavailable(err))
}

func TestAggregate_ReportsTiming(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for _, r := range graphFixture() {
		require.NoError(t, store.Create(ctx, "edges", r, repository.VisibilityRefresh))
	}
	var timings []executor.PageTiming
	sink := executor.TimingSinkFunc(func(_ context.Context, pt executor.PageTiming) error {
		timings = append(timings, pt)
		return nil
	})
	cfg := settings.NewStore(settings.Settings{Index: "edges", PageSize: 2})
	svc := NewEdgeQueryService(executor.New(store, executor.WithTimingSink(sink)), nil, nil, cfg, nil)
	d := aggregation.NewDescriptor(nil,
		aggregation.GroupBy{Field: graph.KeyLabel},
		nil,
		aggregation.ReduceWith{Reducer: aggregation.ReduceCount})

	result, err := svc.Aggregate(ctx, AggregateEdgesQuery{Descriptor: d})

	require.NoError(t, err)
	assert.Len(t, result, 2)
	require.Len(t, timings, 1)
	assert.Equal(t, "aggregate", timings[0].Kind)
	assert.Equal(t, "edges", timings[0].Index)
	assert.Equal(t, 1, timings[0].Page)
	assert.Equal(t, 2, timings[0].Records)
}

func TestSettingsSwapAffectsNewQueriesOnly(t *testing.T) {
	svc, store, cfg := newService(t, graphFixture()...)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "archive", edgeRecord("A1", "knows", "v1", "v2", nil), repository.VisibilityRefresh))

	running, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: graph.NewPredicates()})
	require.NoError(t, err)
	cfg.Set(settings.Settings{Index: "archive", PageSize: 5})

	before, err := executor.Collect(running)
	require.NoError(t, err)
	assert.Len(t, before, 4)

	it, err := svc.ScanEdges(ctx, ScanEdgesQuery{Predicates: graph.NewPredicates()})
	require.NoError(t, err)
	after, err := executor.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, edgeIDs(after))
}
