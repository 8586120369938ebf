package analytics

// Metric selects the event type a time series counts.
type Metric string

const (
	MetricViews     Metric = "views"
	MetricClicks    Metric = "clicks"
	MetricLeads     Metric = "leads"
	MetricPurchases Metric = "purchases"
	MetricRevenue   Metric = "revenue"
)

// EventType maps m to the event type it aggregates.
func (m Metric) EventType() (EventType, bool) {
	switch m {
	case MetricViews:
		return EventPageView, true
	case MetricClicks:
		return EventProductClick, true
	case MetricLeads:
		return EventLeadSubmit, true
	case MetricPurchases, MetricRevenue:
		return EventPurchase, true
	}
	return "", false
}

// DirectSource labels events that carry no UTM source.
const DirectSource = "direct"

// Result is the envelope every Service operation returns. Degraded is set when
// the event store failed and Data is a zeroed placeholder.
type Result[T any] struct {
	Success  bool   `json:"success"`
	Data     T      `json:"data"`
	Error    string `json:"error,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// TimeSeriesPoint is the value of one store-local calendar day.
type TimeSeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type ComparisonMetric struct {
	Current          float64 `json:"current"`
	Previous         float64 `json:"previous"`
	PercentageChange float64 `json:"percentageChange"`
	IsIncrease       bool    `json:"isIncrease"`
}

type ComparisonMetrics struct {
	Current        DateRange        `json:"current"`
	Previous       DateRange        `json:"previous"`
	Visits         ComparisonMetric `json:"visits"`
	Leads          ComparisonMetric `json:"leads"`
	Revenue        ComparisonMetric `json:"revenue"`
	ConversionRate ComparisonMetric `json:"conversionRate"`
}

type TopProduct struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	ProductType string  `json:"productType"`
	Clicks      int64   `json:"clicks"`
	Views       int64   `json:"views"`
	CTR         float64 `json:"ctr"`
}

// TrafficSource is one (source, medium) group. An empty Medium is its own group.
type TrafficSource struct {
	Source    string  `json:"source"`
	Medium    string  `json:"medium,omitempty"`
	Views     int64   `json:"views"`
	Clicks    int64   `json:"clicks"`
	Leads     int64   `json:"leads"`
	Purchases int64   `json:"purchases"`
	Revenue   float64 `json:"revenue"`
}

// Counters are the rollup totals shared by store and product analytics.
type Counters struct {
	Views            int64   `json:"views"`
	Clicks           int64   `json:"clicks"`
	Leads            int64   `json:"leads"`
	Purchases        int64   `json:"purchases"`
	Revenue          float64 `json:"revenue"`
	UniqueSessions   int64   `json:"uniqueSessions"`
	TopTrafficSource string  `json:"topTrafficSource,omitempty"`
	ConversionRate   float64 `json:"conversionRate"`
	ClickThroughRate float64 `json:"clickThroughRate"`
}

type StoreAnalytics struct {
	StoreID string    `json:"storeId"`
	Range   DateRange `json:"range"`
	Counters
}

type ProductAnalytics struct {
	StoreID     string    `json:"storeId"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	ProductType string    `json:"productType,omitempty"`
	Range       DateRange `json:"range"`
	Counters
}

// ProductInfo is the catalog metadata joined into rankings.
type ProductInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}
