package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time snapshot of the manager counters. HitRate is a
// fraction between 0 and 1.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hitRate"`
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	hits := m.hits.Load()
	misses := m.misses.Load()

	stats := Stats{
		Hits:   hits,
		Misses: misses,
		Errors: m.errors.Load(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ResetStats zeroes the in-process counters. Prometheus counters are monotonic
// and are left untouched.
func (m *Manager) ResetStats() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.errors.Store(0)
}

// Metrics holds the prometheus collectors mirrored by a Manager. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Errors        *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the cache collectors and registers them with reg when it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cache_errors_total",
			Help: "Total number of swallowed cache backend errors",
		}, []string{"op"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_cache_fetch_duration_seconds",
			Help:    "Duration of shared source fetches",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Errors, m.FetchDuration)
	}
	return m
}

func (m *Metrics) hit() {
	if m == nil {
		return
	}
	m.Hits.Inc()
}

func (m *Metrics) miss() {
	if m == nil {
		return
	}
	m.Misses.Inc()
}

func (m *Metrics) error(op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(op).Inc()
}

func (m *Metrics) observeFetch(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.FetchDuration.WithLabelValues(result).Observe(d.Seconds())
}
