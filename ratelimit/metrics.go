package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Decision outcomes as reported in metrics.
const (
	outcomeAllowed  = "allowed"
	outcomeRejected = "rejected"
	outcomeDegraded = "degraded"
)

// Metrics counts limiter decisions by route group and outcome. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics creates the limiter collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synapticai",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by route group and outcome.",
		}, []string{"group", "outcome"}),
	}
	if err := reg.Register(m.decisions); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(group, outcome string) {
	if m == nil {
		return
	}
	if group == "" {
		group = "default"
	}
	m.decisions.WithLabelValues(group, outcome).Inc()
}

// Decisions exposes the underlying counter vector.
func (m *Metrics) Decisions() *prometheus.CounterVec { return m.decisions }
