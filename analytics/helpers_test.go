package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

var day0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// at returns day0 plus d days and h hours.
func at(d, h int) time.Time {
	return day0.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
}

func pageView(product string, ts time.Time) Event {
	return Event{StoreID: "s1", ProductID: product, Type: EventPageView, Data: PageViewPayload{}, CreatedAt: ts}
}

func click(product string, ts time.Time) Event {
	return Event{StoreID: "s1", ProductID: product, Type: EventProductClick, Data: ProductClickPayload{}, CreatedAt: ts}
}

func lead(product string, ts time.Time) Event {
	return Event{StoreID: "s1", ProductID: product, Type: EventLeadSubmit, Data: LeadSubmitPayload{}, CreatedAt: ts}
}

func purchase(product, revenue string, ts time.Time) Event {
	return Event{
		StoreID:   "s1",
		ProductID: product,
		Type:      EventPurchase,
		Data:      PurchasePayload{Revenue: decimal.RequireFromString(revenue), Currency: "USD"},
		CreatedAt: ts,
	}
}

func withUTM(e Event, source, medium string) Event {
	e.UTMSource = source
	e.UTMMedium = medium
	return e
}

func repeat(n int, build func(i int) Event) []Event {
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, build(i))
	}
	return out
}

// fakeSource filters an in-memory event slice the way a database would.
type fakeSource struct {
	mu      sync.Mutex
	events  []Event
	err     error
	calls   atomic.Int32
	filters []EventFilter
}

func (f *fakeSource) Events(ctx context.Context, filter EventFilter) ([]Event, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}

	r := DateRange{Start: filter.Start, End: filter.End}
	var out []Event
	for _, e := range f.events {
		if filter.StoreID != "" && e.StoreID != filter.StoreID {
			continue
		}
		if !filter.Start.IsZero() && !r.Contains(e.CreatedAt) {
			continue
		}
		if filter.ProductID != "" && e.ProductID != filter.ProductID {
			continue
		}
		if len(filter.Types) > 0 && !containsType(filter.Types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func containsType(types []EventType, t EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// fakeLookup serves products of store s1 unless owners says otherwise.
type fakeLookup struct {
	products map[string]ProductInfo
	owners   map[string]string
	err      error
}

func (f fakeLookup) ProductsByID(ctx context.Context, storeID string, ids []string) (map[string]ProductInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]ProductInfo, len(ids))
	for _, id := range ids {
		owner, ok := f.owners[id]
		if !ok {
			owner = "s1"
		}
		if owner != storeID {
			continue
		}
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var errStoreDown = errors.New("event store unavailable")
