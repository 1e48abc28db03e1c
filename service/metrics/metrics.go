package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec
	confirmationPolls     *prometheus.HistogramVec

	// Session Metrics
	sessionOperationsTotal   *prometheus.CounterVec
	sessionOperationDuration *prometheus.HistogramVec
	sessionBusy              *prometheus.GaugeVec
	notificationsTotal       *prometheus.CounterVec
	lamportsTransferredTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		confirmationPolls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_confirmation_polls",
				Help:    "Number of signature status polls needed to reach the target commitment",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
			[]string{"endpoint", "status"},
		),

		// Session Metrics
		sessionOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_operations_total",
				Help: "Total number of wallet session operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		sessionOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "session_operation_duration_seconds",
				Help:    "Duration of wallet session operations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		sessionBusy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "session_busy",
				Help: "1 while a session has a provider call in flight, 0 otherwise",
			},
			[]string{"session_id"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_notifications_total",
				Help: "Total number of notifications shown to the user",
			},
			[]string{"kind"},
		),
		lamportsTransferredTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_lamports_transferred_total",
				Help: "Total lamports submitted in successful transfers",
			},
			[]string{"network"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of active SSE connections",
			},
			[]string{"stream"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent",
			},
			[]string{"stream", "event_type"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmationPolls records how many status polls a confirmation took.
func (m *Metrics) RecordConfirmationPolls(endpoint, status string, polls int) {
	m.confirmationPolls.WithLabelValues(endpoint, status).Observe(float64(polls))
}

// Session metric helpers

// RecordSessionOperation records the outcome and duration of a controller operation.
func (m *Metrics) RecordSessionOperation(operation, outcome string, duration float64) {
	m.sessionOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.sessionOperationDuration.WithLabelValues(operation).Observe(duration)
}

// SetSessionBusy mirrors a session's busy flag.
func (m *Metrics) SetSessionBusy(sessionID string, busy bool) {
	v := 0.0
	if busy {
		v = 1.0
	}
	m.sessionBusy.WithLabelValues(sessionID).Set(v)
}

// RecordNotification records a notification being shown.
func (m *Metrics) RecordNotification(kind string) {
	m.notificationsTotal.WithLabelValues(kind).Inc()
}

// RecordLamportsTransferred records lamports moved by a successful transfer.
func (m *Metrics) RecordLamportsTransferred(network string, lamports uint64) {
	m.lamportsTransferredTotal.WithLabelValues(network).Add(float64(lamports))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// RecordSSEConnectionChange records a change in SSE connection count.
func (m *Metrics) RecordSSEConnectionChange(stream string, delta float64) {
	m.sseActiveConnections.WithLabelValues(stream).Add(delta)
}

// RecordSSEEventSent records an SSE event being sent.
func (m *Metrics) RecordSSEEventSent(stream, eventType string) {
	m.sseEventsSent.WithLabelValues(stream, eventType).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
