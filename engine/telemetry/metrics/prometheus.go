// Package metrics exposes the engine's Prometheus instrumentation, grounded
// on the teacher's PrometheusExporter (engine/monitoring/monitoring.go).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the engine's process-wide counters and gauges.
type Collector struct {
	registry *prometheus.Registry

	ProbesTotal          *prometheus.CounterVec
	ProbeLatencySeconds  *prometheus.HistogramVec
	ReachabilityTransitions *prometheus.CounterVec
	AlertTransitions     *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	LimiterInFlight      prometheus.Gauge
	StormSuppressed      prometheus.Counter
}

// NewCollector registers all engine metrics under the given namespace.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "probes_total", Help: "Probe attempts by protocol and outcome.",
		}, []string{"protocol", "success"}),
		ProbeLatencySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "probe_latency_seconds", Help: "Probe round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"protocol"}),
		ReachabilityTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reachability_transitions_total", Help: "Reachability state transitions.",
		}, []string{"to"}),
		AlertTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "alert_transitions_total", Help: "Metric alert level transitions.",
		}, []string{"to"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_sent_total", Help: "Notifications dispatched by priority.",
		}, []string{"priority"}),
		NotificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_failed_total", Help: "Notification dispatch failures.",
		}, []string{"priority"}),
		LimiterInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "limiter_in_flight", Help: "Probes currently holding a concurrency slot.",
		}),
		StormSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "storm_suppressed_total", Help: "Individual DOWN alerts suppressed by storm throttling.",
		}),
	}
	reg.MustRegister(
		c.ProbesTotal, c.ProbeLatencySeconds, c.ReachabilityTransitions,
		c.AlertTransitions, c.NotificationsSent, c.NotificationsFailed,
		c.LimiterInFlight, c.StormSuppressed,
	)
	return c
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
