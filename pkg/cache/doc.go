// Package cache stores catalogue page responses in Redis.
//
// A page response is keyed by source, category and page number, so every
// loader browsing the same category shares the same entries:
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Source: "gutendex", Category: "Fiction", Page: 2}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the catalogue, then:
//		entry, _ = cache.ResponseToEntry(resp)
//		_ = manager.Set(ctx, key, entry)
//	}
//
// Freshness comes from the response itself: Cache-Control max-age wins over
// Expires, and DefaultTTL applies when neither is usable. Entries that carry
// an ETag or Last-Modified allow a conditional request (AddConditionalHeaders)
// once they go stale; a 304 answer refreshes the stored entry with
// Manager.Refresh.
//
// # Metrics
//
//   - catalog_cache_hits_total - Cache hits
//   - catalog_cache_misses_total - Cache misses
//   - catalog_cache_stored_bytes - Bytes written to Redis
//   - catalog_cache_not_modified_total - 304 answers to conditional requests
//   - catalog_cache_conditional_requests_total - Conditional requests sent
//   - catalog_cache_errors_total{operation} - Redis/codec errors
package cache
