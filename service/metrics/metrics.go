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
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec

	// Detection Pipeline Metrics
	scanTicksTotal         *prometheus.CounterVec
	scanTickDuration       prometheus.Histogram
	scanErrorsTotal        *prometheus.CounterVec
	transfersDetectedTotal *prometheus.CounterVec
	transfersSkippedTotal  *prometheus.CounterVec

	// Redistribution Metrics
	redistributionsTotal *prometheus.CounterVec
	redistributedAmount  *prometheus.CounterVec
	legsTotal            *prometheus.CounterVec
	legDuration          *prometheus.HistogramVec
	trackedTokenAccounts prometheus.Gauge

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
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
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),

		scanTicksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_ticks_total",
				Help: "Total number of polling ticks by outcome",
			},
			[]string{"status"},
		),
		scanTickDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_tick_duration_seconds",
				Help:    "Duration of one full scan tick across all monitored accounts",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		scanErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scan_errors_total",
				Help: "Total number of per-account scan errors",
			},
			[]string{"account"},
		),
		transfersDetectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_detected_total",
				Help: "Total number of qualifying incoming transfers detected",
			},
			[]string{"destination"},
		),
		transfersSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfers_skipped_total",
				Help: "Total number of detected transfers skipped before redistribution",
			},
			[]string{"reason"},
		),

		redistributionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redistributions_total",
				Help: "Total number of redistributions executed by outcome",
			},
			[]string{"status"},
		),
		redistributedAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redistributed_amount_total",
				Help: "Total token amount redistributed, in minor units, by leg kind",
			},
			[]string{"kind"},
		),
		legsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redistribution_legs_total",
				Help: "Total number of redistribution legs attempted by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		legDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redistribution_leg_duration_seconds",
				Help:    "Duration of one leg from build to terminal outcome",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		trackedTokenAccounts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracked_token_accounts",
				Help: "Number of token accounts currently tracked for the monitored wallet",
			},
		),

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

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// Pipeline metric helpers

// RecordTick records a completed polling tick with duration.
func (m *Metrics) RecordTick(status string, duration float64) {
	m.scanTicksTotal.WithLabelValues(status).Inc()
	m.scanTickDuration.Observe(duration)
}

// RecordScanError records a per-account scan error.
func (m *Metrics) RecordScanError(account string) {
	m.scanErrorsTotal.WithLabelValues(account).Inc()
}

// RecordTransferDetected records a qualifying incoming transfer.
func (m *Metrics) RecordTransferDetected(destination string) {
	m.transfersDetectedTotal.WithLabelValues(destination).Inc()
}

// RecordTransferSkipped records a detected transfer that was not redistributed.
func (m *Metrics) RecordTransferSkipped(reason string) {
	m.transfersSkippedTotal.WithLabelValues(reason).Inc()
}

// Redistribution metric helpers

// RecordRedistribution records a completed redistribution attempt.
func (m *Metrics) RecordRedistribution(status string) {
	m.redistributionsTotal.WithLabelValues(status).Inc()
}

// RecordLeg records one leg attempt with its terminal outcome and duration.
// The amount only counts toward the redistributed total when confirmed.
func (m *Metrics) RecordLeg(kind, outcome string, amount uint64, duration float64) {
	m.legsTotal.WithLabelValues(kind, outcome).Inc()
	m.legDuration.WithLabelValues(kind).Observe(duration)
	if outcome == "confirmed" {
		m.redistributedAmount.WithLabelValues(kind).Add(float64(amount))
	}
}

// SetTrackedTokenAccounts records the current tracked token account count.
func (m *Metrics) SetTrackedTokenAccounts(n int) {
	m.trackedTokenAccounts.Set(float64(n))
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

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
