package rpc

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(registry prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anvil",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Number of JSON-RPC requests by method.",
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anvil",
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Number of failed JSON-RPC requests by method and error code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anvil",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request latency by method.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"method"}),
	}
	registry.MustRegister(m.requests, m.errors, m.duration)
	return m
}

// observe records a finished request. A zero code marks success.
func (m *metrics) observe(method string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
	if code != 0 {
		m.errors.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
}
