package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/config"
	"github.com/ozadari/unipop/internal/infrastructure/persistence/badgerstore"
	"github.com/ozadari/unipop/internal/infrastructure/persistence/dynamodb"
	"github.com/ozadari/unipop/internal/infrastructure/persistence/memory"
	"github.com/ozadari/unipop/internal/repository"
)

// cursorSweepInterval is how often the in-memory backend drops idle cursors.
const cursorSweepInterval = time.Minute

// NewBaseClient creates the undecorated backend selected by cfg.Backend.Kind.
// The returned cleanup releases the backend's resources and must be called
// once the client is no longer used.
func NewBaseClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.DocumentClient, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend.Kind {
	case config.BackendMemory:
		store := memory.NewStore()
		stop := sweepCursors(store, cursorSweepInterval, logger)
		logger.Info("Using in-memory document backend")
		return store, stop, nil

	case config.BackendBadger:
		store, err := badgerstore.Open(badgerstore.Options{
			Dir:      cfg.Badger.Path,
			InMemory: cfg.Badger.InMemory,
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		logger.Info("Using badger document backend",
			zap.String("path", cfg.Badger.Path),
			zap.Bool("in_memory", cfg.Badger.InMemory),
		)
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close badger store", zap.Error(err))
			}
		}
		return store, cleanup, nil

	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.DynamoDB.Region, cfg.DynamoDB.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("create dynamodb client: %w", err)
		}
		opts := dynamodb.DefaultOptions()
		opts.TablePrefix = cfg.DynamoDB.TablePrefix
		logger.Info("Using dynamodb document backend",
			zap.String("region", cfg.DynamoDB.Region),
			zap.String("table_prefix", opts.TablePrefix),
		)
		return dynamodb.NewStore(client, opts, logger), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend kind: %s", cfg.Backend.Kind)
	}
}

// sweepCursors expires idle memory cursors until the returned func is called.
func sweepCursors(store *memory.Store, every time.Duration, logger *zap.Logger) func() {
	ticker := time.NewTicker(every)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := store.ExpireCursors(); n > 0 {
					logger.Debug("Expired idle cursors", zap.Int("count", n))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
