package invalidation

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts invalidation runs and swallowed failures. A nil *Metrics is valid.
type Metrics struct {
	Invalidations *prometheus.CounterVec
	Failures      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_invalidations_total",
			Help: "Total number of cache invalidation runs",
		}, []string{"kind"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_invalidation_failures_total",
			Help: "Total number of swallowed invalidation step failures",
		}, []string{"kind", "step"}),
	}
	if reg != nil {
		reg.MustRegister(m.Invalidations, m.Failures)
	}
	return m
}

func (m *Metrics) invalidation(kind Kind) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) failure(kind Kind, step string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(string(kind), step).Inc()
}
