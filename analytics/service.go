package analytics

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	// MaxTopProducts caps product rankings.
	MaxTopProducts = 50
	// MaxTrafficSources caps traffic source listings.
	MaxTrafficSources = 100
	// DefaultLimit applies when a caller passes a non-positive limit.
	DefaultLimit = 10
	// DefaultTTL is how long analytics results stay cached.
	DefaultTTL = 5 * time.Minute
)

// Service wraps the Aggregator with read-through caching and the Result
// envelope. Validation failures produce Success=false; event store failures
// additionally set Degraded and are never cached.
type Service struct {
	agg    *Aggregator
	cache  *cache.Manager
	ttl    time.Duration
	clock  clockwork.Clock
	logger logrus.FieldLogger
}

type ServiceOption func(*Service)

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(clock clockwork.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger logrus.FieldLogger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService returns a Service over agg. A nil manager disables caching.
func NewService(agg *Aggregator, manager *cache.Manager, opts ...ServiceOption) *Service {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := &Service{
		agg:    agg,
		cache:  manager,
		ttl:    DefaultTTL,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Aggregator exposes the uncached aggregator.
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

func clampLimit(limit, max int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > max {
		return max
	}
	return limit
}

func failure[T any](zero T, err error) Result[T] {
	return Result[T]{Success: false, Data: zero, Error: err.Error()}
}

// run reads key through the cache, or calls fetch directly without one, and
// wraps the outcome in a Result.
func run[T any](ctx context.Context, s *Service, op, storeID, key string, zero T, fetch cache.FetchFn[T]) Result[T] {
	var (
		data T
		err  error
	)
	if s.cache != nil {
		data, err = cache.GetOrFetch(ctx, s.cache, key, s.ttl, fetch)
	} else {
		data, err = fetch(ctx)
	}

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"op":       op,
			"store_id": storeID,
			"key":      key,
			"error":    err,
		}).Error("analytics query failed, returning degraded result")
		return Result[T]{Success: false, Data: zero, Error: err.Error(), Degraded: true}
	}
	return Result[T]{Success: true, Data: data}
}

func validateStore(storeID string) error {
	if storeID == "" {
		return ErrMissingStore
	}
	return nil
}

// GetTimeSeriesData returns the sparse daily series of metric over [start, end].
func (s *Service) GetTimeSeriesData(ctx context.Context, storeID string, start, end time.Time, metric Metric) Result[[]TimeSeriesPoint] {
	empty := []TimeSeriesPoint{}
	r := NewRange(start, end)
	if err := validateStore(storeID); err != nil {
		return failure(empty, err)
	}
	if err := r.Validate(); err != nil {
		return failure(empty, err)
	}
	if _, ok := metric.EventType(); !ok {
		return failure(empty, ErrUnknownMetric)
	}

	key := cache.AnalyticsKey(storeID, start, end, string(metric))
	return run(ctx, s, "time_series", storeID, key, empty, func(ctx context.Context) ([]TimeSeriesPoint, error) {
		return s.agg.TimeSeries(ctx, storeID, r, metric)
	})
}

// GetComparisonMetrics compares [curStart, curEnd] with [prevStart, prevEnd].
func (s *Service) GetComparisonMetrics(ctx context.Context, storeID string, curStart, curEnd, prevStart, prevEnd time.Time) Result[ComparisonMetrics] {
	current := NewRange(curStart, curEnd)
	previous := NewRange(prevStart, prevEnd)
	zero := ComparisonMetrics{Current: current, Previous: previous}

	if err := validateStore(storeID); err != nil {
		return failure(zero, err)
	}
	if err := ValidateComparison(current, previous); err != nil {
		return failure(zero, err)
	}

	key := cache.AnalyticsKey(storeID, curStart, curEnd, "comparison", cache.RangeSegment(prevStart, prevEnd))
	return run(ctx, s, "comparison", storeID, key, zero, func(ctx context.Context) (ComparisonMetrics, error) {
		return s.agg.Comparison(ctx, storeID, current, previous)
	})
}

// GetComparisonForRange compares r with the equal-length window right before it.
func (s *Service) GetComparisonForRange(ctx context.Context, storeID string, r DateRange) Result[ComparisonMetrics] {
	prev := PreviousPeriod(r)
	return s.GetComparisonMetrics(ctx, storeID, r.Start, r.End, prev.Start, prev.End)
}

// GetTopProductsByClicks ranks up to limit (max 50) products by clicks.
func (s *Service) GetTopProductsByClicks(ctx context.Context, storeID string, start, end time.Time, limit int) Result[[]TopProduct] {
	return s.topProducts(ctx, "top_clicks", storeID, NewRange(start, end), limit, s.agg.TopProductsByClicks)
}

// GetTopProducts ranks up to limit (max 50) products by views.
func (s *Service) GetTopProducts(ctx context.Context, storeID string, r DateRange, limit int) Result[[]TopProduct] {
	return s.topProducts(ctx, "top_views", storeID, r, limit, s.agg.TopProducts)
}

func (s *Service) topProducts(
	ctx context.Context,
	op, storeID string,
	r DateRange,
	limit int,
	rank func(context.Context, string, DateRange, int) ([]TopProduct, error),
) Result[[]TopProduct] {
	empty := []TopProduct{}
	if err := validateStore(storeID); err != nil {
		return failure(empty, err)
	}
	if err := r.Validate(); err != nil {
		return failure(empty, err)
	}
	limit = clampLimit(limit, MaxTopProducts)

	key := cache.AnalyticsKey(storeID, r.Start, r.End, op, strconv.Itoa(limit))
	return run(ctx, s, op, storeID, key, empty, func(ctx context.Context) ([]TopProduct, error) {
		return rank(ctx, storeID, r, limit)
	})
}

// GetTrafficSources lists up to limit (max 100) source/medium groups by clicks.
func (s *Service) GetTrafficSources(ctx context.Context, storeID string, r DateRange, limit int) Result[[]TrafficSource] {
	empty := []TrafficSource{}
	if err := validateStore(storeID); err != nil {
		return failure(empty, err)
	}
	if err := r.Validate(); err != nil {
		return failure(empty, err)
	}
	limit = clampLimit(limit, MaxTrafficSources)

	key := cache.AnalyticsKey(storeID, r.Start, r.End, "traffic", strconv.Itoa(limit))
	return run(ctx, s, "traffic_sources", storeID, key, empty, func(ctx context.Context) ([]TrafficSource, error) {
		return s.agg.TrafficSources(ctx, storeID, r, limit)
	})
}

// GetStoreAnalytics rolls up the store over r.
func (s *Service) GetStoreAnalytics(ctx context.Context, storeID string, r DateRange) Result[StoreAnalytics] {
	zero := StoreAnalytics{StoreID: storeID, Range: r}
	if err := validateStore(storeID); err != nil {
		return failure(zero, err)
	}
	if err := r.Validate(); err != nil {
		return failure(zero, err)
	}

	key := cache.AnalyticsKey(storeID, r.Start, r.End, "store")
	return run(ctx, s, "store_rollup", storeID, key, zero, func(ctx context.Context) (StoreAnalytics, error) {
		return s.agg.StoreAnalytics(ctx, storeID, r)
	})
}

// GetProductAnalytics rolls up one product over r.
func (s *Service) GetProductAnalytics(ctx context.Context, storeID, productID string, r DateRange) Result[ProductAnalytics] {
	zero := ProductAnalytics{StoreID: storeID, ProductID: productID, Range: r}
	if err := validateStore(storeID); err != nil {
		return failure(zero, err)
	}
	if productID == "" {
		return failure(zero, ErrMissingProduct)
	}
	if err := r.Validate(); err != nil {
		return failure(zero, err)
	}

	key := cache.AnalyticsKey(storeID, r.Start, r.End, "product", productID)
	return run(ctx, s, "product_rollup", storeID, key, zero, func(ctx context.Context) (ProductAnalytics, error) {
		return s.agg.ProductAnalytics(ctx, storeID, productID, r)
	})
}

// Preset resolves a range preset for storeID relative to the service clock.
func (s *Service) Preset(ctx context.Context, storeID, preset string) (DateRange, error) {
	return ParseRange(preset, s.clock.Now(), s.agg.location(ctx, storeID))
}
