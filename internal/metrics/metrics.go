// Package metrics defines Prometheus metrics for the audit log service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auditlog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditlog_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditlog_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	LogsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditlog_logs_ingested_total",
			Help: "Log entries written, by event type",
		},
		[]string{"event_type"},
	)

	PaginationQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditlog_pagination_queries_total",
			Help: "Paginated list queries by mode",
		},
		[]string{"mode"},
	)

	AnomalyQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auditlog_anomaly_queue_depth",
			Help: "Pending anomaly checks",
		},
	)

	AlertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auditlog_alerts_dispatched_total",
			Help: "Suspicious activity alerts by result",
		},
		[]string{"result"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auditlog_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, ErrorsTotal,
		LogsIngested, PaginationQueries,
		AnomalyQueueDepth, AlertsDispatched, WSConnections,
	)
}
