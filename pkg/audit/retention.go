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
	"time"

	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/metrics"
)

// CleanerConfig configures retention cleanup.
type CleanerConfig struct {
	// Retention is the maximum record age. Default: 90 days.
	Retention time.Duration

	// Interval is the time between cleanup cycles. Default: 24h.
	Interval time.Duration

	// BatchSize bounds a single delete statement. Default: 1000.
	BatchSize int
}

// DefaultCleanerConfig returns the retention defaults.
func DefaultCleanerConfig() CleanerConfig {
	return CleanerConfig{
		Retention: 90 * 24 * time.Hour,
		Interval:  24 * time.Hour,
		BatchSize: 1000,
	}
}

// Cleaner enforces the retention window. It runs fully decoupled from the
// write path on a fixed schedule and deletes expired records in bounded
// batches, so no single delete holds locks across a large backlog. Cleanup
// is idempotent: a repeated cycle finds nothing new to delete.
type Cleaner struct {
	store  Store
	config CleanerConfig
	logger *zap.Logger
}

// NewCleaner creates a Cleaner.
func NewCleaner(store Store, cfg CleanerConfig, logger *zap.Logger) *Cleaner {
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	return &Cleaner{
		store:  store,
		config: cfg,
		logger: logger.Named("audit-retention"),
	}
}

// Run executes cleanup cycles until the context is cancelled. A failed cycle
// never crashes the loop; the next tick retries regardless.
func (c *Cleaner) Run(ctx context.Context) {
	c.logger.Info("audit retention cleanup started",
		zap.Duration("retention", c.config.Retention),
		zap.Duration("interval", c.config.Interval),
		zap.Int("batch_size", c.config.BatchSize))

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("audit retention cleanup stopped")
			return
		case <-ticker.C:
			c.RunCycle(ctx)
		}
	}
}

// RunCycle performs one full cleanup pass: batched deletes below the cutoff
// until a batch comes back short of the batch size.
func (c *Cleaner) RunCycle(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-c.config.Retention)

	var total int64
	for {
		deleted, err := c.store.DeleteBefore(ctx, cutoff, c.config.BatchSize)
		if err != nil {
			metrics.AuditRetentionErrors.Inc()
			c.logger.Error("audit retention cycle failed",
				zap.Time("cutoff", cutoff),
				zap.Int64("deleted_so_far", total),
				zap.Error(err))
			return
		}
		total += deleted
		if deleted < int64(c.config.BatchSize) {
			break
		}
	}

	metrics.AuditRetentionDeleted.Add(float64(total))
	if total > 0 {
		c.logger.Info("audit retention cycle completed",
			zap.Time("cutoff", cutoff),
			zap.Int64("deleted", total))
	}
}
