// Package cache stores PMS page responses in Redis.
//
// Entries are keyed by request signature (path, query and account) so two
// identical page requests share one entry:
//
//	manager := cache.NewManager(redisClient, cache.WithDefaultTTL(time.Minute))
//
//	key := cache.Key{
//		Path:  "/pms/units",
//		Query: url.Values{"page": {"2"}, "size": {"100"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the PMS, then manager.Set(ctx, key, entry)
//	}
//
// Freshness comes from Cache-Control max-age or Expires on the response,
// falling back to the manager's default TTL. An ETag, when present, is
// replayed as If-None-Match so a 304 can refresh a stale entry.
//
// Scroll responses depend on server-side state and must not be cached;
// the client skips the cache for them.
//
// Time is read through an injected Clock so expiry is testable.
//
// Metrics:
//
//   - pms_cache_hits_total
//   - pms_cache_misses_total
//   - pms_cache_not_modified_total
//   - pms_cache_errors_total{operation}
package cache
