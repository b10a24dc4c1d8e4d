// Package observability provides Prometheus metrics for the auction gateway.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Share processing
	SharesProcessed *prometheus.CounterVec
	ShareLatency    prometheus.Histogram

	// Registry
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	BroadcastDeliveries *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dropauction"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SharesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "shares_processed_total",
			Help:      "Share events processed, by outcome",
		}, []string{"outcome"}),
		ShareLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auction",
			Name:      "share_duration_seconds",
			Help:      "Time to process one share event",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),

		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "active_connections",
			Help:      "Live viewer connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "connections_total",
			Help:      "Viewer connections accepted",
		}),
		BroadcastDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "broadcast_deliveries_total",
			Help:      "Per-connection broadcast results",
		}, []string{"result"}),
	}
}

// RecordShare implements auction.MetricsCollector.
func (m *Metrics) RecordShare(outcome string, duration time.Duration) {
	m.SharesProcessed.WithLabelValues(outcome).Inc()
	m.ShareLatency.Observe(duration.Seconds())
}

// ConnectionOpened implements gateway.RegistryMetrics.
func (m *Metrics) ConnectionOpened() {
	m.ActiveConnections.Inc()
	m.ConnectionsTotal.Inc()
}

// ConnectionClosed implements gateway.RegistryMetrics.
func (m *Metrics) ConnectionClosed() {
	m.ActiveConnections.Dec()
}

// BroadcastDelivered implements gateway.RegistryMetrics.
func (m *Metrics) BroadcastDelivered(delivered, failed int) {
	m.BroadcastDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	m.BroadcastDeliveries.WithLabelValues("failed").Add(float64(failed))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
