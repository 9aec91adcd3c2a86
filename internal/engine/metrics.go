package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "recs"
	querySubsystem   = "query"
)

// Metrics holds Prometheus collectors shared by any number of queries.
// Series are labeled by query name (see WithName).
type Metrics struct {
	events     *prometheus.CounterVec
	recomputes *prometheus.CounterVec
	matching   *prometheus.GaugeVec
}

// NewMetrics creates the query collectors and registers them on reg.
// Registration fails if reg already holds collectors with the same names.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: querySubsystem,
				Name:      "events_total",
				Help:      "Query events emitted, by query and event type",
			},
			[]string{"query", "type"},
		),
		recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: querySubsystem,
				Name:      "recomputes_total",
				Help:      "Full re-evaluations of proxy-mode queries",
			},
			[]string{"query"},
		),
		matching: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: querySubsystem,
				Name:      "matching_records",
				Help:      "Current size of each query's matching set",
			},
			[]string{"query"},
		),
	}

	for _, c := range []prometheus.Collector{m.events, m.recomputes, m.matching} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Events returns the event counter, for inspection in tests and exporters.
func (m *Metrics) Events() *prometheus.CounterVec {
	return m.events
}

// Recomputes returns the proxy recompute counter.
func (m *Metrics) Recomputes() *prometheus.CounterVec {
	return m.recomputes
}

// Matching returns the matching-size gauge.
func (m *Metrics) Matching() *prometheus.GaugeVec {
	return m.matching
}
