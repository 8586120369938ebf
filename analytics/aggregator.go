package analytics

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// EventFilter selects events from the log. Zero-valued fields do not filter.
// Start and End are inclusive.
type EventFilter struct {
	StoreID   string
	Start     time.Time
	End       time.Time
	Types     []EventType
	ProductID string
}

// EventSource queries the append-only event log. Events are returned in
// ascending createdAt order.
type EventSource interface {
	Events(ctx context.Context, filter EventFilter) ([]Event, error)
}

// ProductLookup resolves catalog metadata for a set of product ids belonging
// to storeID. Unknown ids and products of other stores are omitted.
type ProductLookup interface {
	ProductsByID(ctx context.Context, storeID string, ids []string) (map[string]ProductInfo, error)
}

// TimezoneResolver returns the location used to cut a store's calendar days.
type TimezoneResolver interface {
	StoreLocation(ctx context.Context, storeID string) (*time.Location, error)
}

// FixedTimezone resolves every store to the same location.
type FixedTimezone struct {
	Location *time.Location
}

func (f FixedTimezone) StoreLocation(context.Context, string) (*time.Location, error) {
	if f.Location == nil {
		return time.UTC, nil
	}
	return f.Location, nil
}

// Aggregator turns event log queries into the reporting shapes. It is stateless
// and safe for concurrent use; failures are returned, never masked.
type Aggregator struct {
	events    EventSource
	products  ProductLookup
	timezones TimezoneResolver
	logger    logrus.FieldLogger
}

type AggregatorOption func(*Aggregator)

func WithProductLookup(lookup ProductLookup) AggregatorOption {
	return func(a *Aggregator) {
		a.products = lookup
	}
}

func WithTimezoneResolver(resolver TimezoneResolver) AggregatorOption {
	return func(a *Aggregator) {
		if resolver != nil {
			a.timezones = resolver
		}
	}
}

func WithAggregatorLogger(logger logrus.FieldLogger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator returns an Aggregator reading from events.
func NewAggregator(events EventSource, opts ...AggregatorOption) *Aggregator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a := &Aggregator{
		events:    events,
		timezones: FixedTimezone{Location: time.UTC},
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Aggregator) location(ctx context.Context, storeID string) *time.Location {
	loc, err := a.timezones.StoreLocation(ctx, storeID)
	if err != nil || loc == nil {
		if err != nil {
			a.logger.WithFields(logrus.Fields{"store_id": storeID, "error": err}).
				Warn("store timezone lookup failed, using UTC")
		}
		return time.UTC
	}
	return loc
}

func (a *Aggregator) query(ctx context.Context, storeID string, r DateRange, productID string, types ...EventType) ([]Event, error) {
	return a.events.Events(ctx, EventFilter{
		StoreID:   storeID,
		Start:     r.Start,
		End:       r.End,
		Types:     types,
		ProductID: productID,
	})
}

// TimeSeries returns the sparse daily series of metric over r.
func (a *Aggregator) TimeSeries(ctx context.Context, storeID string, r DateRange, metric Metric) ([]TimeSeriesPoint, error) {
	eventType, ok := metric.EventType()
	if !ok {
		return nil, ErrUnknownMetric
	}
	events, err := a.query(ctx, storeID, r, "", eventType)
	if err != nil {
		return nil, err
	}
	return BuildTimeSeries(events, metric, a.location(ctx, storeID)), nil
}

// Comparison queries current and previous independently and compares them.
func (a *Aggregator) Comparison(ctx context.Context, storeID string, current, previous DateRange) (ComparisonMetrics, error) {
	types := []EventType{EventPageView, EventLeadSubmit, EventPurchase}

	cur, err := a.query(ctx, storeID, current, "", types...)
	if err != nil {
		return ComparisonMetrics{}, err
	}
	prev, err := a.query(ctx, storeID, previous, "", types...)
	if err != nil {
		return ComparisonMetrics{}, err
	}

	metrics := CompareWindows(cur, prev)
	metrics.Current = current
	metrics.Previous = previous
	return metrics, nil
}

// TopProductsByClicks ranks products by product_click plus lead_submit events.
func (a *Aggregator) TopProductsByClicks(ctx context.Context, storeID string, r DateRange, limit int) ([]TopProduct, error) {
	events, err := a.query(ctx, storeID, r, "", EventPageView, EventProductClick, EventLeadSubmit)
	if err != nil {
		return nil, err
	}
	products := RankProductsByClicks(events, limit)
	a.joinProducts(ctx, storeID, products)
	return products, nil
}

// TopProducts ranks products by page views.
func (a *Aggregator) TopProducts(ctx context.Context, storeID string, r DateRange, limit int) ([]TopProduct, error) {
	events, err := a.query(ctx, storeID, r, "", EventPageView, EventProductClick, EventLeadSubmit)
	if err != nil {
		return nil, err
	}
	products := RankProductsByViews(events, limit)
	a.joinProducts(ctx, storeID, products)
	return products, nil
}

// joinProducts fills names and types. A lookup failure leaves them empty.
func (a *Aggregator) joinProducts(ctx context.Context, storeID string, products []TopProduct) {
	if a.products == nil || len(products) == 0 {
		return
	}
	info, err := a.products.ProductsByID(ctx, storeID, ProductIDs(products))
	if err != nil {
		a.logger.WithFields(logrus.Fields{"store_id": storeID, "error": err}).
			Warn("product lookup failed, ranking returned without names")
		return
	}
	ApplyProductInfo(products, info)
}

// TrafficSources groups every event of r by UTM source and medium.
func (a *Aggregator) TrafficSources(ctx context.Context, storeID string, r DateRange, limit int) ([]TrafficSource, error) {
	events, err := a.query(ctx, storeID, r, "")
	if err != nil {
		return nil, err
	}
	return GroupTrafficSources(events, limit), nil
}

// StoreAnalytics rolls up every event of the store over r.
func (a *Aggregator) StoreAnalytics(ctx context.Context, storeID string, r DateRange) (StoreAnalytics, error) {
	events, err := a.query(ctx, storeID, r, "")
	if err != nil {
		return StoreAnalytics{}, err
	}
	return StoreAnalytics{StoreID: storeID, Range: r, Counters: Rollup(events)}, nil
}

// ProductAnalytics rolls up the events of one product over r.
func (a *Aggregator) ProductAnalytics(ctx context.Context, storeID, productID string, r DateRange) (ProductAnalytics, error) {
	events, err := a.query(ctx, storeID, r, productID)
	if err != nil {
		return ProductAnalytics{}, err
	}

	out := ProductAnalytics{
		StoreID:   storeID,
		ProductID: productID,
		Range:     r,
		Counters:  Rollup(events),
	}

	if a.products != nil {
		info, err := a.products.ProductsByID(ctx, storeID, []string{productID})
		if err != nil {
			a.logger.WithFields(logrus.Fields{"store_id": storeID, "product_id": productID, "error": err}).
				Warn("product lookup failed")
		} else if p, ok := info[productID]; ok {
			out.ProductName = p.Name
			out.ProductType = p.Type
		}
	}
	return out, nil
}
