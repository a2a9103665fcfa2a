// ABOUTME: Prometheus collectors for message handling, fan-out, and connections
// ABOUTME: Each coordinator owns its registry; a nil *Metrics records nothing

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "easeway"

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultUnknown   = "unknown_type"
	ResultDuplicate = "duplicate"
)

// Metrics groups the coordinator's collectors.
type Metrics struct {
	registry *prometheus.Registry

	messages        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	pushes          *prometheus.CounterVec
	fanout          *prometheus.CounterVec
	connections     *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, plus Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "One-shot messages handled, by type and result",
		}, []string{"type", "result"}),
		handlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "handler_duration_seconds",
			Help:      "One-shot handler latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"type"}),
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "pushes_total",
			Help:      "Context-originated pushes received over connections, by type",
		}, []string{"type"}),
		fanout: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Fan-out delivery attempts, by push type and result",
		}, []string{"type", "result"}),
		connections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "connection_events_total",
			Help:      "Connection lifecycle events, by transport and event",
		}, []string{"transport", "event"}),
	}
}

// WatchConnections exposes a gauge that reads the open connection count on scrape.
func (m *Metrics) WatchConnections(count func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "peer",
		Name:      "connections_open",
		Help:      "Currently open execution-context connections",
	}, func() float64 { return float64(count()) }))
}

// ObserveMessage records one handled one-shot message.
func (m *Metrics) ObserveMessage(msgType, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType, result).Inc()
	if result == ResultOK || result == ResultError {
		m.handlerDuration.WithLabelValues(msgType).Observe(elapsed.Seconds())
	}
}

// ObservePush records one inbound push.
func (m *Metrics) ObservePush(msgType string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(msgType).Inc()
}

// ObserveDelivery records one fan-out attempt.
func (m *Metrics) ObserveDelivery(msgType string, delivered bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if !delivered {
		result = ResultError
	}
	m.fanout.WithLabelValues(msgType, result).Inc()
}

// ObserveConnection records a connection opening or closing.
func (m *Metrics) ObserveConnection(transport, event string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport, event).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
