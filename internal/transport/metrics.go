package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the outbound request collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datasource_kit_requests_total",
				Help: "Outbound requests to the gateway by method and status code.",
			},
			[]string{"method", "code"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datasource_kit_request_duration_seconds",
				Help:    "Outbound request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}

	if err := reg.Register(m.Requests); err != nil {
		return nil, err
	}
	if err := reg.Register(m.Latency); err != nil {
		return nil, err
	}
	return m, nil
}
