package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Audit capture metrics
	AuditRecordsCaptured = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_records_captured_total",
		Help: "Total number of audit records captured and enqueued",
	})
	AuditCaptureSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_audit_capture_skipped_total",
		Help: "Total number of change entries that produced no audit record, by reason",
	}, []string{"reason"})

	// Queue metrics
	AuditQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backoffice_audit_queue_depth",
		Help: "Current number of audit records buffered in the bounded queue",
	})

	// Batch writer metrics
	AuditRecordsFlushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_records_flushed_total",
		Help: "Total number of audit records persisted to durable storage",
	})
	AuditFlushBatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_flush_batches_total",
		Help: "Total number of successful batch flushes",
	})
	AuditFlushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_flush_errors_total",
		Help: "Total number of failed batch flushes; each failure discards the whole batch",
	})
	AuditFlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "backoffice_audit_flush_duration_seconds",
		Help:    "Latency of batch flushes to durable storage",
		Buckets: prometheus.DefBuckets,
	})
	AuditRecordsLost = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_records_lost_total",
		Help: "Total number of audit records discarded due to flush failures",
	})

	// Retention cleanup metrics
	AuditRetentionDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_retention_deleted_total",
		Help: "Total number of expired audit records deleted by retention cleanup",
	})
	AuditRetentionErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_audit_retention_errors_total",
		Help: "Total number of failed retention cleanup cycles",
	})

	// Mirror metrics
	AuditMirrorErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_audit_mirror_errors_total",
		Help: "Total number of failed mirror writes of flushed batches",
	}, []string{"mirror"})

	// HTTP API metrics
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_http_requests_total",
		Help: "Total number of HTTP requests handled by the API",
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(AuditRecordsCaptured)
	prometheus.MustRegister(AuditCaptureSkipped)
	prometheus.MustRegister(AuditQueueDepth)
	prometheus.MustRegister(AuditRecordsFlushed)
	prometheus.MustRegister(AuditFlushBatches)
	prometheus.MustRegister(AuditFlushErrors)
	prometheus.MustRegister(AuditFlushDuration)
	prometheus.MustRegister(AuditRecordsLost)
	prometheus.MustRegister(AuditRetentionDeleted)
	prometheus.MustRegister(AuditRetentionErrors)
	prometheus.MustRegister(AuditMirrorErrors)
	prometheus.MustRegister(HTTPRequests)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
