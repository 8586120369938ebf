package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/goliatone/go-storefront-cache/analytics"
)

func writeResult[T any](w http.ResponseWriter, res analytics.Result[T]) {
	writeJSON(w, resultStatus(res.Success, res.Degraded), res)
}

// storeAnalytics handles GET /api/stores/{storeID}/analytics
func (s *Server) storeAnalytics(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.deps.Analytics.GetStoreAnalytics(r.Context(), storeID, dr))
}

// timeSeries handles GET /api/stores/{storeID}/analytics/timeseries
func (s *Server) timeSeries(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}

	metric := analytics.Metric(r.URL.Query().Get("metric"))
	if metric == "" {
		metric = analytics.MetricViews
	}
	writeResult(w, s.deps.Analytics.GetTimeSeriesData(r.Context(), storeID, dr.Start, dr.End, metric))
}

// comparison handles GET /api/stores/{storeID}/analytics/comparison
//
// Explicit previous bounds (prevStart, prevEnd) are optional; without them
// the window right before the current one is used.
func (s *Server) comparison(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}

	prevStart, prevEnd, ok, err := bounds(r, "prevStart", "prevEnd")
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeResult(w, s.deps.Analytics.GetComparisonForRange(r.Context(), storeID, dr))
		return
	}
	writeResult(w, s.deps.Analytics.GetComparisonMetrics(r.Context(), storeID, dr.Start, dr.End, prevStart, prevEnd))
}

// topProducts handles GET /api/stores/{storeID}/analytics/top-products
//
// ?by=clicks (default) ranks by clicks, ?by=views by page views.
func (s *Server) topProducts(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}

	switch r.URL.Query().Get("by") {
	case "views":
		writeResult(w, s.deps.Analytics.GetTopProducts(r.Context(), storeID, dr, limit(r)))
	default:
		writeResult(w, s.deps.Analytics.GetTopProductsByClicks(r.Context(), storeID, dr.Start, dr.End, limit(r)))
	}
}

// trafficSources handles GET /api/stores/{storeID}/analytics/traffic-sources
func (s *Server) trafficSources(w http.ResponseWriter, r *http.Request) {
	storeID := mux.Vars(r)["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.deps.Analytics.GetTrafficSources(r.Context(), storeID, dr, limit(r)))
}

// productAnalytics handles GET /api/stores/{storeID}/analytics/products/{productID}
func (s *Server) productAnalytics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	storeID := vars["storeID"]
	dr, err := s.dateRange(r, storeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeResult(w, s.deps.Analytics.GetProductAnalytics(r.Context(), storeID, vars["productID"], dr))
}
