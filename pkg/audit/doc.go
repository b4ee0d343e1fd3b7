// Package audit implements the asynchronous audit trail pipeline: change
// capture, the bounded record queue, the batch writer and retention cleanup.
package audit
