package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for stockbook.
//
// All Record/Observe methods are safe on a nil *Metrics so components can
// treat metrics as optional.
type Metrics struct {
	// Transport metrics
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec

	// Session metrics
	SessionInvalidations *prometheus.CounterVec
	SessionTransitions   *prometheus.CounterVec

	// Guard metrics
	GuardDecisions *prometheus.CounterVec

	// Command execution metrics
	CommandExecutions *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_api_requests_total",
				Help: "Total number of backend API requests",
			},
			[]string{"method", "status_class"},
		),
		APIDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockbook_api_request_duration_seconds",
				Help:    "Backend API request latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		SessionInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_session_invalidations_total",
				Help: "Total number of 401 responses that tore down the session",
			},
			[]string{"had_credential"},
		),
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"state"},
		),

		GuardDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_guard_decisions_total",
				Help: "Total number of route guard decisions",
			},
			[]string{"policy", "outcome"},
		),

		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockbook_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// StatusClass buckets an HTTP status for labelling. Zero means no response
// was received.
func StatusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status == 401:
		return "401"
	case status >= 100 && status < 600:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "other"
	}
}

// ObserveRequest records one completed backend request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, StatusClass(status)).Inc()
	m.APIDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordInvalidation counts a 401-triggered teardown.
func (m *Metrics) RecordInvalidation(hadCredential bool) {
	if m == nil {
		return
	}
	m.SessionInvalidations.WithLabelValues(strconv.FormatBool(hadCredential)).Inc()
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}

// RecordGuardDecision counts a guard outcome.
func (m *Metrics) RecordGuardDecision(policy, outcome string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(policy, outcome).Inc()
}

// RecordCommand counts a finished CLI command.
func (m *Metrics) RecordCommand(command string, success bool) {
	if m == nil {
		return
	}
	m.CommandExecutions.WithLabelValues(command, strconv.FormatBool(success)).Inc()
}

// RecordError counts an error by code.
func (m *Metrics) RecordError(code string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}
