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
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store is the durable storage contract of the pipeline. The batch writer is
// the only component that inserts, retention cleanup the only one that
// deletes; the query methods serve the read API.
type Store interface {
	// InsertBatch persists the whole batch in a single storage operation.
	InsertBatch(ctx context.Context, records []*Record) error

	// DeleteBefore removes at most limit records older than cutoff and
	// reports how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// GetByEntity returns the full chronological trail of one entity.
	GetByEntity(ctx context.Context, entityName, entityID string) ([]Record, error)

	// GetByActor returns the most recent records of one actor.
	GetByActor(ctx context.Context, actorID string, limit int) ([]Record, error)

	// GetPaged returns one page of filtered records plus the total count.
	GetPaged(ctx context.Context, filter RecordFilter) ([]Record, int64, error)
}

// RecordFilter narrows a paged audit query. Zero values mean "no filter".
type RecordFilter struct {
	EntityName string
	ActorID    string
	Action     Action
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}

// GormStore implements Store on a relational database through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore. The audit_records table must have been
// migrated by the caller.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// InsertBatch writes all records with one INSERT.
func (s *GormStore) InsertBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("insert audit batch: %w", err)
	}
	return nil
}

// DeleteBefore deletes one bounded batch of expired records. The subquery
// keeps the delete small so no long-held lock builds up on large backlogs.
func (s *GormStore) DeleteBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 1000
	}
	result := s.db.WithContext(ctx).Exec(
		"DELETE FROM audit_records WHERE id IN (SELECT id FROM audit_records WHERE timestamp < ? LIMIT ?)",
		cutoff, limit,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired audit records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetByEntity returns the trail of one entity in chronological order.
func (s *GormStore) GetByEntity(ctx context.Context, entityName, entityID string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("entity_name = ? AND entity_id = ?", entityName, entityID).
		Order("timestamp ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query audit records by entity: %w", err)
	}
	return records, nil
}

// GetByActor returns the most recent records of one actor, newest first.
func (s *GormStore) GetByActor(ctx context.Context, actorID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []Record
	err := s.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query audit records by actor: %w", err)
	}
	return records, nil
}

// GetPaged returns one page of records matching the filter, newest first,
// together with the total match count.
func (s *GormStore) GetPaged(ctx context.Context, filter RecordFilter) ([]Record, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}

	query := s.db.WithContext(ctx).Model(&Record{})
	if filter.EntityName != "" {
		query = query.Where("entity_name = ?", filter.EntityName)
	}
	if filter.ActorID != "" {
		query = query.Where("actor_id = ?", filter.ActorID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if !filter.From.IsZero() {
		query = query.Where("timestamp >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("timestamp <= ?", filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count audit records: %w", err)
	}

	var records []Record
	err := query.
		Order("timestamp DESC, id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query audit records page: %w", err)
	}
	return records, total, nil
}
