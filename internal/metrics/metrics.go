// Package metrics exposes Prometheus collectors for the backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the backend's collectors, registered against the
// registry handed to New.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ObserversActive   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vrewcraft",
			Name:      "operations_total",
			Help:      "Edit operations submitted, by kind and outcome.",
		}, []string{"kind", "status"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vrewcraft",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of edit operations.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"kind"}),
		ObserversActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vrewcraft",
			Name:      "ws_observers_active",
			Help:      "Currently connected progress observers.",
		}),
	}
}
