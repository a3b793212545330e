// Package metrics documents the Prometheus metrics of the category browser
// and exposes them over HTTP. The collectors themselves are declared with
// promauto in the packages that own them (catalog, cache, ratelimit, loader,
// network, browse, server) so that no package depends on this one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer is the source served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves every registered metric in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Catalogue Metrics (pkg/catalog):
//   - catalog_requests_total{source, status} (Counter): requests by source and HTTP status,
//     plus cache_hit, rate_limited and network_error pseudo statuses
//   - catalog_request_duration_seconds{source} (Histogram): page fetch duration
//   - catalog_errors_total{class} (Counter): failed attempts by error class
//   - catalog_shared_fetches_total (Counter): fetches answered by an identical in-flight fetch
//   - catalog_retries_total{error_class} (Counter)
//   - catalog_retry_backoff_seconds{error_class} (Histogram)
//   - catalog_retry_exhausted_total{error_class} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_remaining (Gauge): X-RateLimit-Remaining of the last response
//   - catalog_rate_limit_blocks_total (Counter): requests refused during a cooldown
//   - catalog_rate_limit_throttles_total (Counter): requests delayed on a low budget
//   - catalog_rate_limit_cooldowns_total (Counter): 429 answers
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total / catalog_cache_misses_total (Counter)
//   - catalog_cache_stored_bytes (Counter): bytes written to Redis
//   - catalog_cache_not_modified_total (Counter): 304 revalidations
//   - catalog_cache_conditional_requests_total (Counter)
//   - catalog_cache_errors_total{operation} (Counter)
//
// Loader Metrics (pkg/loader):
//   - category_loader_fetches_total{result} (Counter): success, failure
//   - category_loader_fetch_duration_seconds (Histogram)
//   - category_loader_guard_skips_total{reason} (Counter): loading, end_reached, closed
//   - category_loader_discarded_completions_total (Counter)
//   - category_loader_items_loaded_total (Counter)
//   - category_loader_active (Gauge)
//
// Screen and Session Metrics (pkg/network, pkg/browse, internal/server):
//   - network_checks_total{status} (Counter), network_check_duration_seconds (Histogram)
//   - browse_screens_opened_total{result} (Counter): opened, offline
//   - browse_screens_load_triggers_total (Counter)
//   - browse_sessions_active (Gauge), browse_sessions_created_total (Counter),
//     browse_sessions_reaped_total (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Page Failure Ratio
//   rate(category_loader_fetches_total{result="failure"}[5m]) /
//   rate(category_loader_fetches_total[5m])
//
//   # P95 Page Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
