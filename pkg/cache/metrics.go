package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts fresh entries served from Redis
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total number of catalogue cache hits",
	})

	// CacheMisses counts lookups that found nothing usable
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total number of catalogue cache misses",
	})

	// StoredBytes counts bytes written to Redis
	StoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_stored_bytes",
		Help: "Total bytes written to the catalogue cache",
	})

	// NotModified counts 304 answers to conditional requests
	NotModified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_not_modified_total",
		Help: "Total number of 304 Not Modified answers",
	})

	// ConditionalRequests counts requests sent with validators
	ConditionalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	// CacheErrors counts failed cache operations
	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
