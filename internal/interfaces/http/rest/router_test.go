package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/application/queries"
	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/domain/graph"
	"github.com/ozadari/unipop/internal/infrastructure/observability"
	"github.com/ozadari/unipop/internal/infrastructure/persistence/memory"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/repository"
	"github.com/ozadari/unipop/internal/repository/mocks"
)

func newTestRouter(t *testing.T, client repository.DocumentClient, opts ...RouterOption) http.Handler {
	t.Helper()
	cfg := settings.NewStore(settings.Settings{Index: "edges", PageSize: 2, Visibility: repository.VisibilityRefresh})
	q := queries.NewEdgeQueryService(executor.New(client), nil, nil, cfg, nil)
	c := commands.NewCreateEdgeHandler(client, nil, cfg, nil)
	return NewRouter(NewEdgeHandler(q, c, nil), nil, opts...).Setup()
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	seed := []struct{ id, label, out, in string }{
		{"E1", "knows", "v1", "v2"},
		{"E2", "likes", "v3", "v1"},
		{"E3", "knows", "v2", "v3"},
	}
	for i, e := range seed {
		require.NoError(t, store.Create(context.Background(), "edges", repository.Record{
			ID:    e.id,
			Label: e.label,
			Fields: map[string]any{
				graph.FieldOutID: e.out, graph.FieldOutLabel: "person",
				graph.FieldInID: e.in, graph.FieldInLabel: "person",
				"weight": float64(i + 1),
			},
		}, repository.VisibilityRefresh))
	}
	return store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEdges(t *testing.T, rec *httptest.ResponseRecorder) EdgesResponse {
	t.Helper()
	var resp EdgesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func ids(resp EdgesResponse) []string {
	out := make([]string, len(resp.Edges))
	for i, e := range resp.Edges {
		out[i] = e.ID
	}
	return out
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(t, memory.NewStore()), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestLookup(t *testing.T) {
	h := newTestRouter(t, seeded(t))

	t.Run("found", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/lookup", `{"ids":["E3","E1"]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEdges(t, rec)
		assert.Equal(t, []string{"E3", "E1"}, ids(resp))
		assert.Equal(t, VertexDTO{ID: "v2", Label: "person"}, resp.Edges[0].Out)
		assert.Equal(t, 3.0, resp.Edges[0].Properties["weight"])
	})

	t.Run("missing id is 404", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/lookup", `{"ids":["E1","nope"]}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"ELEMENT_NOT_FOUND"`)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/lookup", `{"ids":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":"INVALID_INPUT"`)
	})
}

func TestSearch(t *testing.T) {
	h := newTestRouter(t, seeded(t))

	t.Run("predicates and limit", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/search",
			`{"predicates":[{"key":"~label","op":"eq","value":"knows"}],"limit":1}`)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeEdges(t, rec)
		assert.Equal(t, []string{"E1"}, ids(resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("range operator", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/search",
			`{"predicates":[{"key":"weight","op":"between","value":[2,4]}]}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"E2", "E3"}, ids(decodeEdges(t, rec)))
	})

	t.Run("unknown operator is 400", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/search",
			`{"predicates":[{"key":"weight","op":"regex","value":"x"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNSUPPORTED_PREDICATE")
	})

	t.Run("missing key is reported by json name", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/search", `{"predicates":[{"op":"eq"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "predicates[0].key is required")
	})
}

func TestSearch_SkipsMalformedRecords(t *testing.T) {
	store := seeded(t)
	require.NoError(t, store.Create(context.Background(), "edges", repository.Record{
		ID: "E0", Label: "knows",
		Fields: map[string]any{graph.FieldOutID: "v1", graph.FieldInID: "v2", graph.FieldInLabel: "person"},
	}, repository.VisibilityRefresh))

	rec := do(t, newTestRouter(t, store), http.MethodPost, "/api/v1/edges/search", `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeEdges(t, rec)
	assert.Equal(t, []string{"E1", "E2", "E3"}, ids(resp))
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "MALFORMED_RECORD", resp.Skipped[0].Code)
	assert.Zero(t, store.OpenCursors())
}

func TestAdjacent(t *testing.T) {
	h := newTestRouter(t, seeded(t))

	tests := []struct {
		name string
		body string
		want []string
	}{
		{"out", `{"vertex_ids":["v1"],"direction":"out"}`, []string{"E1"}},
		{"in", `{"vertex_ids":["v1"],"direction":"in"}`, []string{"E2"}},
		{"both", `{"vertex_ids":["v1"],"direction":"both"}`, []string{"E1", "E2"}},
		{"labels", `{"vertex_ids":["v1"],"direction":"both","labels":["likes"]}`, []string{"E2"}},
		{"empty vertex set", `{"vertex_ids":[],"direction":"both"}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/edges/adjacent", tt.body)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, ids(decodeEdges(t, rec)))
		})
	}

	t.Run("bad direction", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/adjacent", `{"vertex_ids":["v1"],"direction":"up"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "direction must be one of")
	})
}

func TestAggregate(t *testing.T) {
	h := newTestRouter(t, seeded(t))

	t.Run("sum by label", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/aggregate",
			`{"key":"~label","values":"weight","reducer":"sum"}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AggregateResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, []string{"knows", "likes"}, resp.Groups)
		assert.Equal(t, 4.0, resp.Result["knows"])
		assert.Equal(t, 2.0, resp.Result["likes"])
	})

	t.Run("unknown reducer", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges/aggregate",
			`{"key":"~label","values":"weight","reducer":"median"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNSUPPORTED_AGGREGATION")
	})
}

func TestCreate(t *testing.T) {
	store := memory.NewStore()
	h := newTestRouter(t, store)
	body := `{"id":"E9","label":"knows","out":{"id":"v1","label":"person"},"in":{"id":"v2","label":"person"},"properties":{"since":2019}}`

	rec := do(t, h, http.MethodPost, "/api/v1/edges", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/api/v1/edges/E9", rec.Header().Get("Location"))

	rec = do(t, h, http.MethodPost, "/api/v1/edges", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EDGE_ALREADY_EXISTS")

	t.Run("generated id", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges",
			`{"label":"knows","out":{"id":"v1","label":"person"},"in":{"id":"v3","label":"person"}}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var e EdgeDTO
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
		assert.Len(t, e.ID, 36)
	})

	t.Run("missing endpoint label", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/api/v1/edges",
			`{"label":"knows","out":{"id":"v1"},"in":{"id":"v3","label":"person"}}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "out.label is required")
	})
}

func TestBackendFailureIs503(t *testing.T) {
	client := &mocks.DocumentClient{}
	client.On("LookupMany", mock.Anything, "edges", []string{"E1"}, repository.VisibilityRefresh).
		Return(nil, assert.AnError)

	rec := do(t, newTestRouter(t, client), http.MethodPost, "/api/v1/edges/lookup", `{"ids":["E1"]}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "BACKEND_UNAVAILABLE")
}

func TestMetricsRoute(t *testing.T) {
	collector := observability.NewCollector("unipop_test")
	h := newTestRouter(t, seeded(t), WithCollector(collector))

	do(t, h, http.MethodPost, "/api/v1/edges/lookup", `{"ids":["E1"]}`)
	rec := do(t, h, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`route="/api/v1/edges/lookup"`)))
}
