// Package metrics exposes the Prometheus registry used by the PMS client.
// Metrics are defined next to the code that records them (pkg/pagination,
// pkg/client, pkg/cache, pkg/ratelimit) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all PMS metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry collects.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metric describes one exported metric.
type Metric struct {
	Name    string
	Type    string
	Labels  []string
	Package string
}

// Catalogue lists every metric the module exports.
var Catalogue = []Metric{
	{Name: "pms_pagination_pages_fetched_total", Type: "counter", Labels: []string{"mode"}, Package: "pagination"},
	{Name: "pms_pagination_items_yielded_total", Type: "counter", Labels: []string{"mode"}, Package: "pagination"},
	{Name: "pms_pagination_fetch_duration_seconds", Type: "histogram", Labels: []string{"mode"}, Package: "pagination"},
	{Name: "pms_pagination_fetch_errors_total", Type: "counter", Labels: []string{"mode"}, Package: "pagination"},
	{Name: "pms_pagination_bounds_exceeded_total", Type: "counter", Labels: []string{"mode"}, Package: "pagination"},
	{Name: "pms_pagination_malformed_responses_total", Type: "counter", Labels: []string{"mode"}, Package: "pagination"},

	{Name: "pms_requests_total", Type: "counter", Labels: []string{"path", "status"}, Package: "client"},
	{Name: "pms_request_duration_seconds", Type: "histogram", Labels: []string{"path"}, Package: "client"},
	{Name: "pms_errors_total", Type: "counter", Labels: []string{"class"}, Package: "client"},
	{Name: "pms_retries_total", Type: "counter", Labels: []string{"error_class"}, Package: "client"},
	{Name: "pms_retry_backoff_seconds", Type: "histogram", Labels: []string{"error_class"}, Package: "client"},
	{Name: "pms_retry_exhausted_total", Type: "counter", Labels: []string{"error_class"}, Package: "client"},
	{Name: "pms_circuit_breaker_state", Type: "gauge", Labels: []string{"name"}, Package: "client"},

	{Name: "pms_cache_hits_total", Type: "counter", Package: "cache"},
	{Name: "pms_cache_misses_total", Type: "counter", Package: "cache"},
	{Name: "pms_cache_not_modified_total", Type: "counter", Package: "cache"},
	{Name: "pms_cache_errors_total", Type: "counter", Labels: []string{"operation"}, Package: "cache"},

	{Name: "pms_ratelimit_remaining", Type: "gauge", Package: "ratelimit"},
	{Name: "pms_ratelimit_blocks_total", Type: "counter", Package: "ratelimit"},
	{Name: "pms_ratelimit_throttles_total", Type: "counter", Package: "ratelimit"},
}

// Example queries:
//
//   # Cache hit rate
//   sum(rate(pms_cache_hits_total[5m])) /
//   (sum(rate(pms_cache_hits_total[5m])) + sum(rate(pms_cache_misses_total[5m])))
//
//   # Average items per fetched page
//   rate(pms_pagination_items_yielded_total[5m]) / rate(pms_pagination_pages_fetched_total[5m])
//
//   # Share of malformed responses
//   rate(pms_pagination_malformed_responses_total[5m]) / rate(pms_pagination_pages_fetched_total[5m])
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(pms_request_duration_seconds_bucket[5m]))
//
//   # Quota headroom
//   pms_ratelimit_remaining < 20
