// Package catalog serves stores and products to the storefront through the
// read-through cache.
//
// Reads are keyed with the cache key registry (storefront by slug, store
// products, single product, store profile and owner lookups) so the
// invalidation package can target them. Writes go straight to the
// go-repository-bun repositories and, once they succeed, call the matching
// Invalidator entry point:
//
//	store profile changes   -> InvalidateStoreCache (old and new slug)
//	product create/reorder  -> InvalidateProductCache
//	product update/delete   -> InvalidateSingleProduct
//
// Catalog also implements analytics.ProductLookup and
// analytics.TimezoneResolver.
package catalog
