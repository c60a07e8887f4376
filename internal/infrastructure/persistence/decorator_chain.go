package persistence

import (
	"go.uber.org/zap"

	"github.com/ozadari/unipop/internal/config"
	"github.com/ozadari/unipop/internal/infrastructure/decorators"
	"github.com/ozadari/unipop/internal/infrastructure/observability"
	"github.com/ozadari/unipop/internal/repository"
)

// DecoratorChain applies the configured decorators to a document client.
type DecoratorChain struct {
	config    *config.Config
	logger    *zap.Logger
	collector *observability.Collector
}

// NewDecoratorChain creates a chain builder. collector may be nil when
// metrics are disabled.
func NewDecoratorChain(cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *DecoratorChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DecoratorChain{config: cfg, logger: logger, collector: collector}
}

// Decorate wraps base.
// Order: Base -> Retry -> Circuit Breaker -> Instrumentation -> Logging
func (dc *DecoratorChain) Decorate(base repository.DocumentClient) repository.DocumentClient {
	decorated := base
	res := dc.config.Resilience

	// Layer 1: Retry (closest to base)
	if res.Retry.MaxAttempts > 1 {
		retry := repository.DefaultRetryConfig()
		retry.MaxAttempts = res.Retry.MaxAttempts
		retry.BaseDelay = res.Retry.BaseDelay
		retry.MaxDelay = res.Retry.MaxDelay
		decorated = NewRetryClient(decorated, retry, dc.logger)
		dc.logger.Debug("Applied retry decorator", zap.Int("max_attempts", retry.MaxAttempts))
	}

	// Layer 2: Circuit breaker
	if res.CircuitBreaker.Enabled {
		cb := DefaultCircuitBreakerConfig("document-backend-" + dc.config.Backend.Kind)
		cb.MaxRequests = res.CircuitBreaker.MaxRequests
		cb.Interval = res.CircuitBreaker.Interval
		cb.Timeout = res.CircuitBreaker.Timeout
		cb.FailureThreshold = res.CircuitBreaker.FailureThreshold
		cb.MinRequests = res.CircuitBreaker.MinRequests
		decorated = NewCircuitBreakerClient(decorated, cb, dc.logger)
		dc.logger.Debug("Applied circuit breaker decorator")
	}

	// Layer 3: Spans and metrics
	if dc.config.Tracing.Enabled || dc.collector != nil {
		decorated = observability.NewInstrumentedClient(decorated, dc.collector, nil)
		dc.logger.Debug("Applied instrumentation decorator")
	}

	// Layer 4: Logging (outermost)
	logCfg := decorators.DefaultLoggingConfig()
	logCfg.SlowThreshold = dc.config.Logging.SlowThreshold
	decorated = decorators.NewLoggingClient(decorated, dc.logger, logCfg)

	return decorated
}
