package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-storefront-cache/analytics"
	"github.com/goliatone/go-storefront-cache/internal/format"
)

// DefaultPreset is used when a request names neither a preset nor bounds.
const DefaultPreset = "7d"

// parseTime accepts RFC 3339 timestamps or YYYY-MM-DD day keys. A day key
// used as an end bound covers the whole day.
func parseTime(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	day, err := format.ParseDayKey(value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q", analytics.ErrInvalidRange, value)
	}
	if endOfDay {
		return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return day, nil
}

// bounds reads start/end query parameters named by the given keys.
func bounds(r *http.Request, startKey, endKey string) (time.Time, time.Time, bool, error) {
	q := r.URL.Query()
	rawStart, rawEnd := q.Get(startKey), q.Get(endKey)
	if rawStart == "" && rawEnd == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%w: both %s and %s are required", analytics.ErrInvalidRange, startKey, endKey)
	}

	start, err := parseTime(rawStart, false)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	end, err := parseTime(rawEnd, true)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return start, end, true, nil
}

// dateRange resolves explicit start/end bounds, or a range preset relative to
// the store's local day.
func (s *Server) dateRange(r *http.Request, storeID string) (analytics.DateRange, error) {
	start, end, ok, err := bounds(r, "start", "end")
	if err != nil {
		return analytics.DateRange{}, err
	}
	if ok {
		return analytics.NewRange(start, end), nil
	}

	preset := r.URL.Query().Get("range")
	if preset == "" {
		preset = DefaultPreset
	}
	return s.deps.Analytics.Preset(r.Context(), storeID, preset)
}

// limit reads ?limit; absent or malformed values fall back to 0 which the
// service clamps to its default.
func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
