package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the plugin host's Prometheus collectors. Each instance owns
// its registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Render bridge
	BridgeRequests *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec

	// Capability ops
	OpCalls    *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec

	// Renders and events
	Renders *prometheus.CounterVec
	Events  *prometheus.CounterVec

	// Asset resolution
	AssetResolutions *prometheus.CounterVec
	AssetDuration    *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a collector set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	fast := []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		BridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_bridge_requests_total",
				Help: "Render bridge requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginhost_bridge_request_duration_seconds",
				Help:    "Time from submission to reply",
				Buckets: fast,
			},
			[]string{"kind"},
		),

		OpCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_op_calls_total",
				Help: "Capability op invocations by op and status",
			},
			[]string{"op", "status"},
		),
		OpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginhost_op_duration_seconds",
				Help:    "Capability op duration in seconds",
				Buckets: fast,
			},
			[]string{"op"},
		),

		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_renders_total",
				Help: "Render submissions by location and outcome",
			},
			[]string{"location", "outcome"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_events_total",
				Help: "UI events by outcome",
			},
			[]string{"outcome"},
		),

		AssetResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_asset_resolutions_total",
				Help: "Image asset resolutions by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		AssetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pluginhost_asset_resolution_duration_seconds",
				Help:    "Image asset resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pluginhost_ws_connections",
				Help: "Number of connected renderer clients",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pluginhost_ws_messages_total",
				Help: "Renderer WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "pluginhost_uptime_seconds",
			Help: "Plugin host uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveBridgeRequest records one settled bridge request.
func (m *Metrics) ObserveBridgeRequest(kind, outcome string, d time.Duration) {
	m.BridgeRequests.WithLabelValues(kind, outcome).Inc()
	m.BridgeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordOp records a capability op call
func (m *Metrics) RecordOp(op, status string, d time.Duration) {
	m.OpCalls.WithLabelValues(op, status).Inc()
	m.OpDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRender records an accepted or rejected render submission.
func (m *Metrics) ObserveRender(location, outcome string) {
	m.Renders.WithLabelValues(location, outcome).Inc()
}

// ObserveEvent records an event queue outcome.
func (m *Metrics) ObserveEvent(outcome string) {
	m.Events.WithLabelValues(outcome).Inc()
}

// ObserveAsset records one per-node image resolution.
func (m *Metrics) ObserveAsset(source, outcome string, d time.Duration) {
	m.AssetResolutions.WithLabelValues(source, outcome).Inc()
	m.AssetDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
