package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors shared by every cache in the
// process. Each cache reports under its own name label. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewMetrics creates the cache collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synapticai",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups served from a live entry.",
		}, []string{"cache"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synapticai",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no live entry.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synapticai",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed to make room for a new key.",
		}, []string{"cache"}),
	}
	for _, c := range []prometheus.Collector{m.hits, m.misses, m.evictions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) hit(name string) {
	if m != nil {
		m.hits.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) miss(name string) {
	if m != nil {
		m.misses.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) evict(name string) {
	if m != nil {
		m.evictions.WithLabelValues(name).Inc()
	}
}
