// Package metrics is the concrete realization of the "statistics counters"
// collaborator spec.md §1 names as external to the protocol core: the wire
// protocol itself never imports this package, but the demo node (pkg/server,
// cmd/shcd) records into it and the admin HTTP surface exposes it.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/histogram the demo node records. A nil
// *Metrics is valid and every Record/Observe method on it is a no-op,
// mirroring the teacher's "pass nil for zero overhead" convention.
type Metrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge

	commandsTotal   *prometheus.CounterVec
	parseFailures   prometheus.Counter
	authFailures    prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// New registers a fresh set of collectors against reg and returns the
// bundle. reg is typically prometheus.NewRegistry() owned by the caller
// (pkg/adminapi serves it via promhttp).
func New(reg *prometheus.Registry) *Metrics {
	return &Metrics{
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shc_connections_accepted_total",
			Help: "Total number of client connections accepted.",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shc_connections_closed_total",
			Help: "Total number of client connections closed, including force-closed ones.",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shc_connections_force_closed_total",
			Help: "Total number of connections force-closed after shutdown timeout.",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shc_active_connections",
			Help: "Current number of active client connections.",
		}),
		commandsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shc_commands_total",
			Help: "Total number of requests dispatched, by command name.",
		}, []string{"command"}),
		parseFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shc_parse_failures_total",
			Help: "Total number of messages rejected for a protocol framing error.",
		}),
		authFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shc_auth_failures_total",
			Help: "Total number of messages rejected for a signature mismatch.",
		}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shc_request_duration_seconds",
			Help:    "Time to dispatch and respond to one request, by command name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
}

func (m *Metrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *Metrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *Metrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *Metrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

// RecordCommand increments the per-command counter and observes its
// dispatch latency.
func (m *Metrics) RecordCommand(command string, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command).Inc()
	m.requestDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func (m *Metrics) RecordParseFailure() {
	if m == nil {
		return
	}
	m.parseFailures.Inc()
}

func (m *Metrics) RecordAuthFailure() {
	if m == nil {
		return
	}
	m.authFailures.Inc()
}
