// Package analytics aggregates the storefront event log into reporting
// shapes: daily time series, period comparisons, product rankings, traffic
// source breakdowns and store or product rollups.
//
// The compute functions are pure and operate on slices of Event. Aggregator
// queries an EventSource and applies them, and Service adds range validation,
// limit clamping, read-through caching through cache.Manager and the Result
// envelope. When the event store fails, Service returns a degraded Result
// instead of an error and does not cache it.
package analytics
