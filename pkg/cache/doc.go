// Package cache provides the two-tier (fresh/stale) rate cache backed by
// Redis that sits between the pricing coordinator and the shared store.
//
// Two Redis namespaces are maintained per logical rate key:
//
//   - fresh:{key} — short TTL; presence means the value still satisfies the
//     upstream's freshness contract.
//   - stale:{key} — long TTL; populated in lockstep with fresh so that it
//     outlives it and can back degraded-mode responses.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewStore(redisClient)
//
//	value, _, err := store.Get(ctx, cache.Fresh, key)
//	if err == cache.ErrMiss {
//	    // cache miss — go fetch from upstream
//	}
//
//	if err := store.Put(ctx, cache.Fresh, key, value, 5*time.Minute); err != nil {
//	    return err
//	}
//
// # Metrics
//
// The store exports Prometheus metrics:
//
//   - rate_cache_hits_total{namespace} — cache hits
//   - rate_cache_misses_total{namespace} — cache misses
//   - rate_cache_errors_total{operation} — Redis operation errors
package cache
