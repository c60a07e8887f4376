// Package di wires the service together with Google Wire.
package di

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ozadari/unipop/internal/application/commands"
	"github.com/ozadari/unipop/internal/application/queries"
	"github.com/ozadari/unipop/internal/application/settings"
	"github.com/ozadari/unipop/internal/config"
	"github.com/ozadari/unipop/internal/infrastructure/observability"
	"github.com/ozadari/unipop/internal/infrastructure/persistence"
	"github.com/ozadari/unipop/internal/interfaces/http/rest"
	"github.com/ozadari/unipop/internal/query/executor"
	"github.com/ozadari/unipop/internal/repository"
)

// ConfigProviders load configuration and build the logger.
var ConfigProviders = wire.NewSet(
	provideConfig,
	provideLogLevel,
	provideLogger,
)

// InfrastructureProviders build the observability stack and the decorated
// document client.
var InfrastructureProviders = wire.NewSet(
	provideCollector,
	provideTracerProvider,
	provideDocumentClient,
	provideExecutor,
)

// ApplicationProviders build the query and command services.
var ApplicationProviders = wire.NewSet(
	provideSettings,
	provideWatcher,
	provideEdgeQueryService,
	provideCreateEdgeHandler,
)

// InterfaceProviders build the HTTP surface.
var InterfaceProviders = wire.NewSet(
	provideEdgeHandler,
	provideRouter,
)

// SuperSet combines every provider set.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	wire.Struct(new(Container), "*"),
)

func provideConfig(loader *config.Loader) (*config.Config, error) {
	return loader.Load()
}

func provideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("parse log level: %w", err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// provideLogger builds a JSON logger in production and a console logger
// everywhere else. The level is shared so reloads can change it.
func provideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return logger, func() { _ = logger.Sync() }, nil
}

// provideCollector returns nil when metrics are disabled.
func provideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// provideTracerProvider returns nil when tracing is disabled.
func provideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Tracing enabled",
		zap.String("endpoint", cfg.Tracing.Endpoint),
		zap.Float64("sample_rate", cfg.Tracing.SampleRate),
	)
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// provideDocumentClient opens the configured backend and wraps it in the
// decorator chain. The tracer provider is taken so that it is installed
// before any span is started.
func provideDocumentClient(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	collector *observability.Collector,
	_ *observability.TracerProvider,
) (repository.DocumentClient, func(), error) {
	base, cleanup, err := persistence.NewBaseClient(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	client := persistence.NewDecoratorChain(cfg, logger, collector).Decorate(base)
	logger.Info("Document backend ready",
		zap.String("kind", cfg.Backend.Kind),
		zap.String("index", cfg.Backend.Index),
	)
	return client, cleanup, nil
}

func provideExecutor(client repository.DocumentClient, collector *observability.Collector, logger *zap.Logger) *executor.Executor {
	opts := []executor.Option{executor.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, executor.WithTimingSink(collector))
	}
	return executor.New(client, opts...)
}

func provideSettings(cfg *config.Config) (*settings.Store, error) {
	s, err := settings.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return settings.NewStore(s), nil
}

// provideWatcher enables hot reload when a config file is in use. Query
// settings and the log level follow the file; everything else needs a
// restart.
func provideWatcher(
	loader *config.Loader,
	cfg *config.Config,
	store *settings.Store,
	level zap.AtomicLevel,
	logger *zap.Logger,
) (*config.Watcher, func(), error) {
	if loader.Path() == "" {
		return nil, func() {}, nil
	}
	w, err := config.NewWatcher(loader, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store.Watch(w, logger)
	w.OnChange(func(next *config.Config) {
		l, err := zapcore.ParseLevel(next.Logging.Level)
		if err != nil || l == level.Level() {
			return
		}
		level.SetLevel(l)
		logger.Info("Log level changed", zap.Stringer("level", l))
	})
	return w, w.Stop, nil
}

func provideEdgeQueryService(exec *executor.Executor, store *settings.Store, logger *zap.Logger) *queries.EdgeQueryService {
	return queries.NewEdgeQueryService(exec, nil, nil, store, logger)
}

func provideCreateEdgeHandler(client repository.DocumentClient, store *settings.Store, logger *zap.Logger) *commands.CreateEdgeHandler {
	return commands.NewCreateEdgeHandler(client, nil, store, logger)
}

func provideEdgeHandler(q *queries.EdgeQueryService, c *commands.CreateEdgeHandler, logger *zap.Logger) *rest.EdgeHandler {
	return rest.NewEdgeHandler(q, c, logger)
}

func provideRouter(edges *rest.EdgeHandler, cfg *config.Config, collector *observability.Collector, logger *zap.Logger) *rest.Router {
	var opts []rest.RouterOption
	if collector != nil {
		opts = append(opts, rest.WithCollector(collector))
	}
	if cfg.Tracing.Enabled {
		opts = append(opts, rest.WithTracing(cfg.Tracing.ServiceName))
	}
	return rest.NewRouter(edges, logger, opts...)
}
