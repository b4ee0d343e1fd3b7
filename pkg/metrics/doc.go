// Package metrics defines Prometheus metrics for the back-office service,
// covering the audit pipeline (capture, queue, flush, retention, mirror)
// and the HTTP API.
package metrics
