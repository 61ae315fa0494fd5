package chart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "argo_charts"

// Metrics are the counters a Mediator maintains.
type Metrics struct {
	Results             *prometheus.CounterVec
	FramesDelivered     prometheus.Counter
	FramesDropped       *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
}

// NewMetrics creates the mediator metrics and registers them on reg.
// A nil reg leaves them unregistered, which is what tests and one-off commands want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "subscribe_results_total",
			Help:      "Subscribe calls partitioned by outcome.",
		}, []string{"kind"}),
		FramesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_delivered_total",
			Help:      "Push frames handed to a chart callback.",
		}),
		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Push frames not delivered, partitioned by reason.",
		}, []string{"why"}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_subscriptions",
			Help:      "Streams currently registered.",
		}),
	}
}

func (m *Metrics) observe(kind ResultKind) {
	m.Results.WithLabelValues(string(kind)).Inc()
}
