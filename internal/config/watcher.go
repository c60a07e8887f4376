package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of file events into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads the configuration file when it changes and notifies
// subscribers with the new, validated snapshot. An invalid file is logged
// and ignored; the previous configuration stays current.
type Watcher struct {
	loader   *Loader
	logger   *zap.Logger
	debounce time.Duration

	mu        sync.RWMutex
	current   *Config
	callbacks []func(*Config)

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher starts watching the loader's file. The directory is watched
// rather than the file so that editors replacing the file are noticed.
func NewWatcher(loader *Loader, initial *Config, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if loader.Path() == "" {
		return nil, fmt.Errorf("config watcher needs a file path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(loader.Path())); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", loader.Path(), err)
	}

	w := &Watcher{
		loader:   loader,
		logger:   logger,
		debounce: DefaultDebounce,
		current:  initial,
		fsw:      fsw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.loop()

	logger.Info("Configuration hot reloading enabled", zap.String("path", loader.Path()))
	return w, nil
}

// OnChange registers a callback run after every successful reload.
func (w *Watcher) OnChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Current returns the latest valid configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		<-w.done
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	defer w.fsw.Close()

	target := filepath.Clean(w.loader.Path())
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

// reload loads and validates the file, then swaps and notifies.
func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err != nil {
		w.logger.Error("Invalid configuration after reload, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
	w.logger.Info("Configuration reloaded",
		zap.String("index", cfg.Backend.Index),
		zap.Int("page_size", cfg.Backend.PageSize),
		zap.String("visibility", cfg.Backend.Visibility),
		zap.Int("callbacks_notified", len(callbacks)),
	)
}
