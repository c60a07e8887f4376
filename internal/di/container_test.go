package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ozadari/unipop/internal/config"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestInitializeContainer_Memory(t *testing.T) {
	loader := config.NewLoader("").WithLookup(env(map[string]string{
		"UNIPOP_BACKEND_VISIBILITY": "refresh",
	}))

	c, cleanup, err := InitializeContainer(context.Background(), loader)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, c.Collector)
	assert.Nil(t, c.Tracing)
	assert.Nil(t, c.Watcher)
	assert.Equal(t, "edges", c.Settings.Load().Index)

	h := c.Handler()
	body := `{"id":"E1","label":"knows","out":{"id":"v1","label":"person"},"in":{"id":"v2","label":"person"}}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/edges", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/edges/adjacent",
		strings.NewReader(`{"vertex_ids":["v2"],"direction":"in"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"E1"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "unipop_backend_operations_total")
}

func TestInitializeContainer_InvalidConfig(t *testing.T) {
	loader := config.NewLoader("").WithLookup(env(map[string]string{
		"UNIPOP_BACKEND_KIND": "cassandra",
	}))

	_, _, err := InitializeContainer(context.Background(), loader)

	assert.Error(t, err)
}

func TestInitializeContainer_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unipop.yaml")
	write := func(index, level string) {
		doc := "backend:\n  index: " + index + "\nlogging:\n  level: " + level + "\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	}
	write("edges", "info")

	c, cleanup, err := InitializeContainer(context.Background(), config.NewLoader(path).WithLookup(env(nil)))
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, c.Watcher)

	write("archive", "debug")

	assert.Eventually(t, func() bool {
		return c.Settings.Load().Index == "archive" && c.LogLevel.Level() == zapcore.DebugLevel
	}, 5*time.Second, 20*time.Millisecond)
}
