package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/application/queries"
	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/config"
	"github.com/ozadari/unipop/internal/infrastructure/observability"
	"github.com/ozadari/unipop/internal/interfaces/http/rest"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/repository"
)

// Container holds the wired application. Collector, Tracing and Watcher are
// nil when the corresponding feature is off.
type Container struct {
	Config    *config.Config
	LogLevel  zap.AtomicLevel
	Logger    *zap.Logger
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Client    repository.DocumentClient
	Executor  *executor.Executor
	Settings  *settings.Store
	Watcher   *config.Watcher
	Queries   *queries.EdgeQueryService
	Commands  *commands.CreateEdgeHandler
	Edges     *rest.EdgeHandler
	Router    *rest.Router
}

// Handler returns the HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.Router.Setup()
}
