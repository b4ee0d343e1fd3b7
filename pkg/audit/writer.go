/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/metrics"
)

// BatchMirror is an optional secondary destination for successfully flushed
// batches (e.g. a Kafka compliance topic). Mirror failures are logged and
// never affect the durable store path.
type BatchMirror interface {
	WriteBatch(ctx context.Context, records []*Record) error
	Close() error
	Name() string
}

// WriterConfig configures the batch writer.
type WriterConfig struct {
	// BatchSize is the flush threshold. Default: 100.
	BatchSize int

	// FlushInterval is the maximum staleness of buffered records.
	// Default: 5s.
	FlushInterval time.Duration

	// WriteTimeout bounds a single storage operation. Default: 10s.
	WriteTimeout time.Duration

	// ShutdownGrace bounds the drain after the queue is completed.
	// Default: 10s.
	ShutdownGrace time.Duration
}

// DefaultWriterConfig returns the writer defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		WriteTimeout:  10 * time.Second,
		ShutdownGrace: 10 * time.Second,
	}
}

// Writer is the sole writer of audit records to durable storage. It runs as
// one long-lived background loop draining the queue, buffering records and
// flushing on whichever trigger fires first: batch size or flush interval.
type Writer struct {
	queue  *Queue
	store  Store
	mirror BatchMirror
	config WriterConfig
	logger *zap.Logger

	flushedRecords atomic.Int64
	flushedBatches atomic.Int64
	lostRecords    atomic.Int64
}

// NewWriter creates a Writer. mirror may be nil.
func NewWriter(queue *Queue, store Store, mirror BatchMirror, cfg WriterConfig, logger *zap.Logger) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}

	return &Writer{
		queue:  queue,
		store:  store,
		mirror: mirror,
		config: cfg,
		logger: logger.Named("audit-writer"),
	}
}

// Run drains the queue until it is completed, then flushes the remainder and
// returns. It is meant to be called exactly once, in its own goroutine.
func (w *Writer) Run() {
	w.logger.Info("audit batch writer started",
		zap.Int("batch_size", w.config.BatchSize),
		zap.Duration("flush_interval", w.config.FlushInterval))

	timer := time.NewTimer(w.config.FlushInterval)
	defer timer.Stop()

	batch := make([]*Record, 0, w.config.BatchSize)

	for {
		select {
		case record := <-w.queue.Records():
			batch = append(batch, record)
			if len(batch) >= w.config.BatchSize {
				w.flush(&batch)
				resetTimer(timer, w.config.FlushInterval)
			}

		case <-timer.C:
			// Time trigger. Flushing an empty batch is a no-op but
			// the timer is reset either way.
			w.flush(&batch)
			timer.Reset(w.config.FlushInterval)

		case <-w.queue.Done():
			w.drain(&batch)
			w.flush(&batch)
			w.logger.Info("audit batch writer stopped",
				zap.Int64("flushed_records", w.flushedRecords.Load()),
				zap.Int64("flushed_batches", w.flushedBatches.Load()),
				zap.Int64("lost_records", w.lostRecords.Load()))
			return
		}
	}
}

// drain empties what is still buffered in the completed queue, bounded by the
// shutdown grace period.
func (w *Writer) drain(batch *[]*Record) {
	deadline := time.Now().Add(w.config.ShutdownGrace)
	for {
		if time.Now().After(deadline) {
			w.logger.Warn("shutdown grace elapsed with audit records still queued",
				zap.Int("remaining", w.queue.Depth()))
			return
		}
		select {
		case record := <-w.queue.Records():
			*batch = append(*batch, record)
			if len(*batch) >= w.config.BatchSize {
				w.flush(batch)
			}
		default:
			return
		}
	}
}

// flush persists the pending batch in one storage operation and clears it.
// A failed flush discards the batch: there is no retry or dead-letter path,
// so the loss is logged at error severity for alerting.
func (w *Writer) flush(batch *[]*Record) {
	metrics.AuditQueueDepth.Set(float64(w.queue.Depth()))

	if len(*batch) == 0 {
		return
	}

	records := *batch
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := w.store.InsertBatch(ctx, records); err != nil {
		w.lostRecords.Add(int64(len(records)))
		metrics.AuditFlushErrors.Inc()
		metrics.AuditRecordsLost.Add(float64(len(records)))
		w.logger.Error("AUDIT BATCH LOST: flush to storage failed",
			zap.Int("batch_size", len(records)),
			zap.Time("first_record", records[0].Timestamp),
			zap.Time("last_record", records[len(records)-1].Timestamp),
			zap.Error(err))
	} else {
		duration := time.Since(start)
		w.flushedRecords.Add(int64(len(records)))
		w.flushedBatches.Add(1)
		metrics.AuditRecordsFlushed.Add(float64(len(records)))
		metrics.AuditFlushBatches.Inc()
		metrics.AuditFlushDuration.Observe(duration.Seconds())

		if w.mirror != nil {
			w.mirrorBatch(records)
		}
	}

	*batch = (*batch)[:0]
}

// mirrorBatch forwards an already-durable batch to the mirror destination.
func (w *Writer) mirrorBatch(records []*Record) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.WriteTimeout)
	defer cancel()

	if err := w.mirror.WriteBatch(ctx, records); err != nil {
		metrics.AuditMirrorErrors.WithLabelValues(w.mirror.Name()).Inc()
		w.logger.Warn("audit mirror write failed",
			zap.String("mirror", w.mirror.Name()),
			zap.Int("batch_size", len(records)),
			zap.String("error", err.Error()))
	}
}

// Stats returns writer counters for observability.
func (w *Writer) Stats() WriterStats {
	return WriterStats{
		FlushedRecords: w.flushedRecords.Load(),
		FlushedBatches: w.flushedBatches.Load(),
		LostRecords:    w.lostRecords.Load(),
	}
}

// WriterStats contains batch writer counters.
type WriterStats struct {
	FlushedRecords int64
	FlushedBatches int64
	LostRecords    int64
}

// resetTimer restarts a timer that may or may not have fired.
func resetTimer(timer *time.Timer, interval time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(interval)
}
