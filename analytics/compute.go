package analytics

import (
	"sort"
	"time"

	"github.com/goliatone/go-storefront-cache/internal/format"
	"github.com/shopspring/decimal"
)

// PercentageChange is 0 when both values are 0, 100 when only previous is 0,
// and (current-previous)/previous*100 otherwise.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// IsIncrease treats a tie as an increase.
func IsIncrease(current, previous float64) bool {
	return current >= previous
}

// Compare builds the derived comparison of two values.
func Compare(current, previous float64) ComparisonMetric {
	return ComparisonMetric{
		Current:          current,
		Previous:         previous,
		PercentageChange: PercentageChange(current, previous),
		IsIncrease:       IsIncrease(current, previous),
	}
}

// ConversionRate is (leads+purchases)/visits*100, or 0 without visits.
func ConversionRate(leads, purchases, visits int64) float64 {
	return ratio(leads+purchases, visits)
}

func ratio(num, den int64) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

// BuildTimeSeries buckets events of the metric's type by store-local day.
// Revenue sums purchase revenue; every other metric counts events. Days
// without events are absent.
func BuildTimeSeries(events []Event, metric Metric, loc *time.Location) []TimeSeriesPoint {
	eventType, ok := metric.EventType()
	if !ok {
		return []TimeSeriesPoint{}
	}

	counts := make(map[string]int64)
	sums := make(map[string]decimal.Decimal)
	for _, e := range events {
		if e.Type != eventType {
			continue
		}
		day := format.DayKey(e.CreatedAt, loc)
		counts[day]++
		if metric == MetricRevenue {
			sums[day] = sums[day].Add(e.Revenue())
		}
	}

	points := make([]TimeSeriesPoint, 0, len(counts))
	for day, n := range counts {
		value := float64(n)
		if metric == MetricRevenue {
			value = sums[day].Round(2).InexactFloat64()
		}
		points = append(points, TimeSeriesPoint{Date: day, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// DenseSeries fills the days of r missing from points with zero values.
func DenseSeries(points []TimeSeriesPoint, r DateRange, loc *time.Location) []TimeSeriesPoint {
	return format.FillDailyGaps(points, r.Start, r.End, loc,
		func(p TimeSeriesPoint) string { return p.Date },
		func(day string) TimeSeriesPoint { return TimeSeriesPoint{Date: day} },
	)
}

type windowTotals struct {
	visits    int64
	leads     int64
	purchases int64
	revenue   decimal.Decimal
}

func totals(events []Event) windowTotals {
	var t windowTotals
	for _, e := range events {
		switch e.Type {
		case EventPageView:
			t.visits++
		case EventLeadSubmit:
			t.leads++
		case EventPurchase:
			t.purchases++
			t.revenue = t.revenue.Add(e.Revenue())
		}
	}
	return t
}

// CompareWindows derives visits, leads, revenue and conversion rate for two
// independently queried windows.
func CompareWindows(current, previous []Event) ComparisonMetrics {
	cur := totals(current)
	prev := totals(previous)

	return ComparisonMetrics{
		Visits:  Compare(float64(cur.visits), float64(prev.visits)),
		Leads:   Compare(float64(cur.leads), float64(prev.leads)),
		Revenue: Compare(cur.revenue.Round(2).InexactFloat64(), prev.revenue.Round(2).InexactFloat64()),
		ConversionRate: Compare(
			ConversionRate(cur.leads, cur.purchases, cur.visits),
			ConversionRate(prev.leads, prev.purchases, prev.visits),
		),
	}
}

// tallyProducts counts clicks and views per product in first-seen order.
// product_click and lead_submit both count as clicks.
func tallyProducts(events []Event) []TopProduct {
	index := make(map[string]int)
	var products []TopProduct
	for _, e := range events {
		if e.ProductID == "" {
			continue
		}
		switch e.Type {
		case EventProductClick, EventLeadSubmit, EventPageView:
		default:
			continue
		}

		i, ok := index[e.ProductID]
		if !ok {
			i = len(products)
			index[e.ProductID] = i
			products = append(products, TopProduct{ProductID: e.ProductID})
		}
		if e.Type == EventPageView {
			products[i].Views++
		} else {
			products[i].Clicks++
		}
	}

	for i := range products {
		products[i].CTR = format.Round(ratio(products[i].Clicks, products[i].Views), 2)
	}
	return products
}

// RankProductsByClicks orders products by clicks, keeping encounter order on ties.
func RankProductsByClicks(events []Event, limit int) []TopProduct {
	products := tallyProducts(events)
	sort.SliceStable(products, func(i, j int) bool { return products[i].Clicks > products[j].Clicks })
	return truncate(products, limit)
}

// RankProductsByViews orders products by views, keeping encounter order on ties.
func RankProductsByViews(events []Event, limit int) []TopProduct {
	products := tallyProducts(events)
	sort.SliceStable(products, func(i, j int) bool { return products[i].Views > products[j].Views })
	return truncate(products, limit)
}

// ApplyProductInfo joins catalog names and types into ranked products.
func ApplyProductInfo(products []TopProduct, info map[string]ProductInfo) {
	for i := range products {
		if p, ok := info[products[i].ProductID]; ok {
			products[i].ProductName = p.Name
			products[i].ProductType = p.Type
		}
	}
}

// ProductIDs returns the distinct product ids of products in order.
func ProductIDs(products []TopProduct) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ProductID)
	}
	return ids
}

func sourceOf(e Event) string {
	if e.UTMSource == "" {
		return DirectSource
	}
	return e.UTMSource
}

// GroupTrafficSources groups events by (source, medium), sorts by clicks
// (stable) and truncates to limit.
func GroupTrafficSources(events []Event, limit int) []TrafficSource {
	type groupKey struct{ source, medium string }

	index := make(map[groupKey]int)
	var groups []TrafficSource
	revenue := make(map[int]decimal.Decimal)

	for _, e := range events {
		key := groupKey{source: sourceOf(e), medium: e.UTMMedium}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, TrafficSource{Source: key.source, Medium: key.medium})
		}

		switch e.Type {
		case EventPageView:
			groups[i].Views++
		case EventProductClick:
			groups[i].Clicks++
		case EventLeadSubmit:
			groups[i].Leads++
		case EventPurchase:
			groups[i].Purchases++
			revenue[i] = revenue[i].Add(e.Revenue())
		}
	}

	for i := range groups {
		groups[i].Revenue = revenue[i].Round(2).InexactFloat64()
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Clicks > groups[j].Clicks })
	return truncate(groups, limit)
}

// Rollup totals events into Counters. TopTrafficSource is the source with the
// most events; ties go to the source seen first.
func Rollup(events []Event) Counters {
	var c Counters
	var revenue decimal.Decimal
	sessions := make(map[string]struct{})
	sourceCounts := make(map[string]int64)
	var sourceOrder []string

	for _, e := range events {
		switch e.Type {
		case EventPageView:
			c.Views++
		case EventProductClick:
			c.Clicks++
		case EventLeadSubmit:
			c.Leads++
		case EventPurchase:
			c.Purchases++
			revenue = revenue.Add(e.Revenue())
		}
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		if e.UTMSource != "" {
			if _, seen := sourceCounts[e.UTMSource]; !seen {
				sourceOrder = append(sourceOrder, e.UTMSource)
			}
			sourceCounts[e.UTMSource]++
		}
	}

	var best int64
	for _, source := range sourceOrder {
		if n := sourceCounts[source]; n > best {
			best = n
			c.TopTrafficSource = source
		}
	}

	c.Revenue = revenue.Round(2).InexactFloat64()
	c.UniqueSessions = int64(len(sessions))
	c.ConversionRate = format.Round(ConversionRate(c.Leads, c.Purchases, c.Views), 2)
	c.ClickThroughRate = format.Round(ratio(c.Clicks, c.Views), 2)
	return c
}

func truncate[T any](items []T, limit int) []T {
	if items == nil {
		return []T{}
	}
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
