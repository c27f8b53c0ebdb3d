// Package prometheus is the Prometheus-backed implementation of
// metrics.RPCMetrics: a thin promauto.With(reg)-constructed struct, with
// nil-receiver methods that no-op when metrics are disabled.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/virtrpcd/virtrpcd/internal/metrics"
)

type rpcMetrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	requestsInFlight   *prometheus.GaugeVec
	activeConnections  prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsForced   prometheus.Counter
	authOutcomes        *prometheus.CounterVec
	authThrottled       *prometheus.CounterVec
}

// NewRPCMetrics creates a new Prometheus-backed metrics.RPCMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called), so
// callers can pass the result straight through to collaborators that treat
// a nil metrics.RPCMetrics as "collection disabled".
func NewRPCMetrics() metrics.RPCMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &rpcMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "virtrpcd_requests_total",
				Help: "Total number of dispatched RPC procedures by name and status",
			},
			[]string{"procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "virtrpcd_request_duration_seconds",
				Help:    "Duration of dispatched RPC procedures in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"procedure"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "virtrpcd_requests_in_flight",
				Help: "Number of RPC procedures currently being dispatched",
			},
			[]string{"procedure"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "virtrpcd_active_connections",
				Help: "Number of currently open RPC connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "virtrpcd_connections_accepted_total",
				Help: "Total number of accepted RPC connections",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "virtrpcd_connections_closed_total",
				Help: "Total number of cleanly closed RPC connections",
			},
		),
		connectionsForced: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "virtrpcd_connections_force_closed_total",
				Help: "Total number of connections force-closed after the shutdown timeout",
			},
		),
		authOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "virtrpcd_auth_outcomes_total",
				Help: "Total number of SASL negotiation outcomes by mechanism and outcome",
			},
			[]string{"mechanism", "outcome"},
		),
		authThrottled: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "virtrpcd_auth_throttled_total",
				Help: "Total number of AUTH_SASL_INIT calls rejected by the throttle",
			},
			[]string{"remote_addr"},
		),
	}
}

func (m *rpcMetrics) RecordRequest(procedure, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(procedure, status).Inc()
	m.requestDuration.WithLabelValues(procedure).Observe(duration.Seconds())
}

func (m *rpcMetrics) RecordRequestStart(procedure string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(procedure).Inc()
}

func (m *rpcMetrics) RecordRequestEnd(procedure string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(procedure).Dec()
}

func (m *rpcMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *rpcMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *rpcMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *rpcMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForced.Inc()
}

func (m *rpcMetrics) RecordAuthOutcome(mechanism, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(mechanism, outcome).Inc()
}

func (m *rpcMetrics) RecordThrottled(remoteAddr string) {
	if m == nil {
		return
	}
	m.authThrottled.WithLabelValues(remoteAddr).Inc()
}

var _ metrics.RPCMetrics = (*rpcMetrics)(nil)
