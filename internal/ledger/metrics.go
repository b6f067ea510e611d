package ledger

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "reservedport"

	kindRandom   = "random"
	kindExplicit = "explicit"
)

// metrics holds the ledger's collectors. They are always updated; whether
// anyone can scrape them depends on register having been called.
type metrics struct {
	reservations *prometheus.CounterVec
	releases     prometheus.Counter
	exhausted    prometheus.Counter
	inUse        prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Number of ports reserved, by kind (random or explicit).",
		}, []string{"kind"}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_total",
			Help:      "Number of reserved ports released.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exhausted_total",
			Help:      "Number of random reservations that found no free port.",
		}),
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_use",
			Help:      "Number of ports currently reserved.",
		}),
	}
}

// register adds the collectors to reg. On the first failure the collectors
// registered so far are removed again and the error is returned, so a
// registry never exports half a ledger.
func (m *metrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	collectors := []prometheus.Collector{m.reservations, m.releases, m.exhausted, m.inUse}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return fmt.Errorf("failed to register ledger metrics: %w", err)
		}
	}
	return nil
}
