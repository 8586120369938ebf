// Package cache provides the read-through cache manager and the key registry
// shared by every storefront component.
//
// # Overview
//
// The package exports three building blocks:
//
//   - Manager: read-through access to a Store with per-key single-flight
//   - Store: the key-value backend contract (Get, SetEX, Del, Scan)
//   - Key registry: pure functions deriving every cache key in the system
//
// The Manager never retains entries. All values live in the backing Store with
// a TTL; the Manager only tracks in-flight fetches and hit/miss/error counters.
//
// # Basic Usage
//
//	manager, err := cache.NewManager(store, cache.DefaultConfig(),
//		cache.WithLogger(logger),
//		cache.WithMetrics(cache.NewMetrics(prometheus.DefaultRegisterer)),
//	)
//
//	products, err := cache.GetOrFetch(ctx, manager, cache.StoreProductsKey(storeID), 10*time.Minute,
//		func(ctx context.Context) ([]Product, error) {
//			return repo.ListByStore(ctx, storeID)
//		})
//
// # Failure Semantics
//
// Backend failures (read, write, decode) are logged, counted in Stats().Errors,
// and treated as a miss, so an unavailable backend degrades to direct fetches.
// Only errors returned by the fetch function reach the caller, and they are
// never cached. A fetch that outlives Config.FetchTimeout fails every waiter
// with ErrFetchTimeout.
//
// # Keys
//
// Keys are namespace-prefixed and every identifier segment is escaped with
// EscapeSegment, so raw input can never add separators or glob characters:
//
//	cache.StorefrontKey("acme")                    // storefront:acme
//	cache.AnalyticsKey(id, start, end, "views")    // analytics:{id}:20240101T000000Z-20240131T235959.999999999Z:views
//	cache.AnalyticsPattern(id)                     // analytics:{id}:*
//
// # See Also
//
// The invalidation package deletes keys built here after writes, and
// internal/cacheinfra provides the Redis and in-process Store implementations.
package cache
