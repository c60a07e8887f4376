// Package observability provides Prometheus metrics, OpenTelemetry tracing
// and the instrumentation decorator for the document client.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ozadari/unipop/internal/query/executor"
)

// Collector holds all Prometheus metrics for the service. Each collector
// owns its registry so tests can create as many as they need.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Backend metrics
	BackendOperations *prometheus.CounterVec
	BackendDuration   *prometheus.HistogramVec

	// Query metrics
	PageDuration *prometheus.HistogramVec
	PageRecords  *prometheus.HistogramVec

	// Mutation metrics
	EdgesCreated  prometheus.Counter
	EdgeConflicts prometheus.Counter
}

// NewCollector creates a collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		BackendOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_operations_total",
				Help:      "Total number of document backend operations",
			},
			[]string{"operation", "index", "status"},
		),
		BackendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_operation_duration_seconds",
				Help:      "Document backend operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "index"},
		),
		PageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_page_duration_seconds",
				Help:      "Latency of one lookup or scroll page round trip",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"kind", "index", "step"},
		),
		PageRecords: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_page_records",
				Help:      "Records returned per page",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind", "index"},
		),
		EdgesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_created_total",
			Help:      "Total number of edges created",
		}),
		EdgeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edge_conflicts_total",
			Help:      "Edge creations rejected because the identifier existed",
		}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.BackendOperations,
		c.BackendDuration,
		c.PageDuration,
		c.PageRecords,
		c.EdgesCreated,
		c.EdgeConflicts,
	)
	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePage records one executor page. It satisfies executor.TimingSink.
func (c *Collector) ObservePage(_ context.Context, t executor.PageTiming) error {
	step := t.Step
	if step == "" {
		step = "unnamed"
	}
	c.PageDuration.WithLabelValues(t.Kind, t.Index, step).Observe(t.Duration.Seconds())
	c.PageRecords.WithLabelValues(t.Kind, t.Index).Observe(float64(t.Records))
	return nil
}

// RecordBackend records the outcome of one backend call.
func (c *Collector) RecordBackend(operation, index, status string, d time.Duration) {
	c.BackendOperations.WithLabelValues(operation, index, status).Inc()
	c.BackendDuration.WithLabelValues(operation, index).Observe(d.Seconds())
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var _ executor.TimingSink = (*Collector)(nil)
