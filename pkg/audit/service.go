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
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/metrics"
)

// Config holds the pipeline configuration, loaded once at startup.
type Config struct {
	// Enabled turns the whole pipeline on. When false every method is a
	// no-op.
	Enabled bool

	// BatchSize is the flush threshold of the batch writer. Default: 100.
	BatchSize int

	// FlushInterval is the maximum staleness of buffered records.
	// Default: 5s.
	FlushInterval time.Duration

	// MaxQueueSize is the bounded queue capacity. Default: 10000.
	MaxQueueSize int

	// Retention is the maximum record age. Default: 90 days.
	Retention time.Duration

	// CleanupInterval is the time between retention cycles. Default: 24h.
	CleanupInterval time.Duration

	// CleanupBatchSize bounds a single retention delete. Default: 1000.
	CleanupBatchSize int

	// ShutdownGrace bounds the drain on shutdown. Default: 10s.
	ShutdownGrace time.Duration

	// ExcludedEntities are entity type names that are never captured.
	ExcludedEntities []string

	// ExcludedFields are field names that never appear in value
	// snapshots, even when they changed.
	ExcludedFields []string
}

// DefaultConfig returns the pipeline defaults. The audit record type itself
// and refresh tokens are excluded from capture, as are credential-bearing
// fields.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		MaxQueueSize:     10000,
		Retention:        90 * 24 * time.Hour,
		CleanupInterval:  24 * time.Hour,
		CleanupBatchSize: 1000,
		ShutdownGrace:    10 * time.Second,
		ExcludedEntities: []string{"AuditRecord", "RefreshToken"},
		// updatedAt is bumped by the ORM on every save and would turn
		// no-op saves into update records.
		ExcludedFields: []string{
			"password", "passwordHash", "secret", "token",
			"refreshToken", "securityStamp", "updatedAt",
		},
	}
}

// Service owns the audit pipeline: the bounded queue, the batch writer task
// and the retention cleanup task. It is created once at process boot,
// started once, injected wherever capture is needed and shut down with the
// application. There is no ambient state; everything hangs off this object.
type Service struct {
	config   Config
	logger   *zap.Logger
	store    Store
	mirror   BatchMirror
	queue    *Queue
	recorder *Recorder
	writer   *Writer
	cleaner  *Cleaner

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started atomic.Bool
	closed  atomic.Bool
}

// NewService wires the pipeline components together. mirror may be nil.
func NewService(store Store, mirror BatchMirror, cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.CleanupBatchSize <= 0 {
		cfg.CleanupBatchSize = def.CleanupBatchSize
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = def.ShutdownGrace
	}

	svc := &Service{
		config: cfg,
		logger: logger.Named("audit-service"),
		store:  store,
		mirror: mirror,
	}

	if !cfg.Enabled {
		return svc
	}

	svc.queue = NewQueue(cfg.MaxQueueSize)
	svc.recorder = NewRecorder(svc.queue, cfg.ExcludedEntities, cfg.ExcludedFields, logger)
	svc.writer = NewWriter(svc.queue, store, mirror, WriterConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		ShutdownGrace: cfg.ShutdownGrace,
	}, logger)
	svc.cleaner = NewCleaner(store, CleanerConfig{
		Retention: cfg.Retention,
		Interval:  cfg.CleanupInterval,
		BatchSize: cfg.CleanupBatchSize,
	}, logger)

	return svc
}

// Start launches the writer and cleanup tasks. Calling Start on a disabled
// or already-started service is a no-op.
func (s *Service) Start() {
	if !s.config.Enabled || s.started.Swap(true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writer.Run()
	}()
	go func() {
		defer s.wg.Done()
		s.cleaner.Run(ctx)
	}()

	s.logger.Info("audit pipeline started",
		zap.Int("queue_capacity", s.config.MaxQueueSize),
		zap.Int("batch_size", s.config.BatchSize),
		zap.Duration("flush_interval", s.config.FlushInterval),
		zap.Duration("retention", s.config.Retention))
}

// Enabled reports whether the pipeline is active.
func (s *Service) Enabled() bool {
	return s.config.Enabled
}

// Capture derives audit records from the change set and enqueues them. It
// runs inline with the triggering save; it may block briefly under
// backpressure but never returns an error and never fails the caller.
func (s *Service) Capture(ctx context.Context, changes []EntityChange) {
	if !s.config.Enabled || s.closed.Load() {
		return
	}
	s.recorder.Capture(ctx, changes)
}

// Record enqueues one domain-action record (e.g. a permission grant) outside
// entity-change capture. Failures are logged and swallowed like any capture
// failure.
func (s *Service) Record(ctx context.Context, action Action, entityName, entityID string, values map[string]interface{}) {
	if !s.config.Enabled || s.closed.Load() {
		return
	}
	if entityName == "" || entityID == "" {
		s.logger.Warn("dropping audit record without entity identity",
			zap.String("action", string(action)))
		return
	}

	actor := ActorFromContext(ctx)
	record := &Record{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     action,
		EntityName: entityName,
		EntityID:   entityID,
		Timestamp:  time.Now().UTC(),
		IPAddress:  actor.IPAddress,
	}
	if len(values) > 0 {
		raw, err := json.Marshal(values)
		if err != nil {
			s.logger.Warn("skipping audit record, values not serializable",
				zap.String("action", string(action)),
				zap.String("entity", entityName),
				zap.Error(err))
			return
		}
		record.NewValues = string(raw)
	}

	if err := s.queue.Enqueue(record); err != nil {
		metrics.AuditCaptureSkipped.WithLabelValues("enqueue").Inc()
		s.logger.Warn("audit record not enqueued",
			zap.String("action", string(action)),
			zap.String("entity", entityName),
			zap.String("error", err.Error()))
		return
	}
	metrics.AuditRecordsCaptured.Inc()
}

// GetByEntity returns the chronological trail of one entity.
func (s *Service) GetByEntity(ctx context.Context, entityName, entityID string) ([]Record, error) {
	return s.store.GetByEntity(ctx, entityName, entityID)
}

// GetByActor returns the most recent records of one actor.
func (s *Service) GetByActor(ctx context.Context, actorID string, limit int) ([]Record, error) {
	return s.store.GetByActor(ctx, actorID, limit)
}

// GetPaged returns one filtered page of records and the total count.
func (s *Service) GetPaged(ctx context.Context, filter RecordFilter) ([]Record, int64, error) {
	return s.store.GetPaged(ctx, filter)
}

// QueueDepth returns the current queue depth for observability.
func (s *Service) QueueDepth() int {
	if !s.config.Enabled {
		return 0
	}
	return s.queue.Depth()
}

// Shutdown stops new enqueues, drains and flushes the remaining queued
// records within the grace period carried by ctx, then stops the cleanup
// loop. Safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.config.Enabled || !s.started.Load() || s.closed.Swap(true) {
		return nil
	}

	s.logger.Info("audit pipeline shutting down",
		zap.Int("queued", s.queue.Depth()))

	s.queue.Complete()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("audit pipeline shutdown: %w", ctx.Err())
	}

	if s.mirror != nil {
		if closeErr := s.mirror.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	stats := s.writer.Stats()
	s.logger.Info("audit pipeline stopped",
		zap.Int64("flushed_records", stats.FlushedRecords),
		zap.Int64("lost_records", stats.LostRecords))
	return err
}
