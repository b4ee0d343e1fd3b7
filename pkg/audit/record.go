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
	"time"
)

// Action represents the kind of change an audit record describes.
type Action string

const (
	// Entity-change actions produced by the capture pipeline.
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// Domain actions emitted directly by handlers, outside entity-change
	// capture. The pipeline treats them like any other record.
	ActionGrantPermission Action = "permission.grant"
	ActionDenyPermission  Action = "permission.deny"
)

// SystemActor is the sentinel actor id used when no principal is attached to
// the triggering operation (background jobs, migrations).
const SystemActor = "system"

// CompositeKeyDelimiter joins the components of a composite primary key into
// the EntityID column.
const CompositeKeyDelimiter = ":"

// Record is a single immutable audit trail entry. It is created once by the
// capture stage, persisted once by the batch writer and deleted only by
// retention cleanup; no component ever updates one.
type Record struct {
	// ID is assigned by storage on insert, never by the pipeline.
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// ActorID identifies the acting principal, or SystemActor.
	ActorID string `gorm:"size:64;not null;index" json:"actorId"`

	// ActorName is the optional display name of the actor.
	ActorName string `gorm:"size:128" json:"actorName,omitempty"`

	// Action is the change kind (create, update, delete, ...).
	Action Action `gorm:"size:32;not null;index" json:"action"`

	// EntityName is the logical type name of the mutated entity.
	EntityName string `gorm:"size:128;not null;index:idx_audit_entity" json:"entityName"`

	// EntityID is the string-normalized primary key. Composite keys are
	// joined with CompositeKeyDelimiter.
	EntityID string `gorm:"size:128;not null;index:idx_audit_entity" json:"entityId"`

	// OldValues is a JSON field->value map. Empty on create.
	OldValues string `gorm:"type:text" json:"oldValues,omitempty"`

	// NewValues is a JSON field->value map. Empty on delete.
	NewValues string `gorm:"type:text" json:"newValues,omitempty"`

	// AffectedFields is the comma-joined, sorted list of fields that
	// actually changed. Set on update records only.
	AffectedFields string `gorm:"size:1024" json:"affectedFields,omitempty"`

	// Timestamp is the capture-time UTC instant, not flush time.
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`

	// IPAddress is the source of the triggering request, if known.
	IPAddress string `gorm:"size:64" json:"ipAddress,omitempty"`
}

// TableName fixes the storage table name regardless of gorm pluralization.
func (Record) TableName() string {
	return "audit_records"
}
