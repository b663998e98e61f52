// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gameshelf/apiserver/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector registers and records the service's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	httpStatus       *prometheus.CounterVec
	httpLatency      prometheus.Histogram
	moderationAction *prometheus.CounterVec
	catalogCacheHit  prometheus.Counter
	catalogCacheMiss prometheus.Counter
	reconcilerRetry  prometheus.Counter
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gameshelf_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gameshelf_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		moderationAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gameshelf_moderation_actions_total",
			Help: "Successful moderation actions by type.",
		}, []string{"action"}),
		catalogCacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gameshelf_catalog_cache_hits_total",
			Help: "Catalog proxy cache hits.",
		}),
		catalogCacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gameshelf_catalog_cache_misses_total",
			Help: "Catalog proxy cache misses.",
		}),
		reconcilerRetry: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gameshelf_deletion_reconciler_retries_total",
			Help: "Retried identity-provider deletions.",
		}),
	}

	registry.MustRegister(
		c.httpStatus,
		c.httpLatency,
		c.moderationAction,
		c.catalogCacheHit,
		c.catalogCacheMiss,
		c.reconcilerRetry,
	)

	return c
}

// Handler serves the /metrics endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPResponse counts one response and its latency.
func (c *Collector) RecordHTTPResponse(statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordModerationAction counts one successful moderation action.
func (c *Collector) RecordModerationAction(action types.ActionType) {
	c.moderationAction.WithLabelValues(string(action)).Inc()
}

// RecordCatalogCacheHit counts a catalog cache hit.
func (c *Collector) RecordCatalogCacheHit() {
	c.catalogCacheHit.Inc()
}

// RecordCatalogCacheMiss counts a catalog cache miss.
func (c *Collector) RecordCatalogCacheMiss() {
	c.catalogCacheMiss.Inc()
}

// RecordReconcilerRetry counts a retried directory deletion.
func (c *Collector) RecordReconcilerRetry() {
	c.reconcilerRetry.Inc()
}
