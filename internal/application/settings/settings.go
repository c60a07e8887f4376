// Package settings holds the immutable query settings shared by every query
// and swaps them atomically when the configuration is reloaded.
package settings

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/config"
	apperrors "github.com/ozadari/unipop/internal/errors"
	"github.com/ozadari/unipop/internal/repository"
)

// Settings are the per-query parameters taken from configuration.
type Settings struct {
	Index      string
	PageSize   int
	Visibility repository.Visibility
}

// FromConfig extracts the query settings from cfg.
func FromConfig(cfg *config.Config) (Settings, error) {
	visibility, err := repository.ParseVisibility(cfg.Backend.Visibility)
	if err != nil {
		return Settings{}, apperrors.NewError(apperrors.ErrorTypeValidation, apperrors.CodeInvalidConfig, "invalid backend visibility").
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
	return Settings{
		Index:      cfg.Backend.Index,
		PageSize:   cfg.Backend.PageSize,
		Visibility: visibility,
	}, nil
}

// Store publishes the current settings. A query loads them once when it
// starts and keeps that snapshot until it finishes.
type Store struct {
	current atomic.Pointer[Settings]
}

// NewStore creates a store holding initial.
func NewStore(initial Settings) *Store {
	s := &Store{}
	s.Set(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Settings {
	return *s.current.Load()
}

// Set replaces the current snapshot.
func (s *Store) Set(next Settings) {
	s.current.Store(&next)
}

// Watch subscribes the store to configuration reloads.
func (s *Store) Watch(w *config.Watcher, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w.OnChange(func(cfg *config.Config) {
		next, err := FromConfig(cfg)
		if err != nil {
			logger.Error("Ignoring reloaded query settings", zap.Error(err))
			return
		}
		s.Set(next)
		logger.Info("Query settings updated",
			zap.String("index", next.Index),
			zap.Int("page_size", next.PageSize),
			zap.Stringer("visibility", next.Visibility),
		)
	})
}
