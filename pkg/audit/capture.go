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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adminsuite/backoffice/pkg/metrics"
)

// EntityState is the persistence state of an entity at capture time.
type EntityState int

const (
	StateAdded EntityState = iota
	StateModified
	StateDeleted
)

// String returns a readable state name for logging.
func (s EntityState) String() string {
	switch s {
	case StateAdded:
		return "added"
	case StateModified:
		return "modified"
	case StateDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FieldValue carries the old and current value of one tracked field.
type FieldValue struct {
	Name    string
	Old     interface{}
	Current interface{}
}

// EntityChange is one "entity about to be persisted" observation, supplied by
// the persistence layer. The pipeline has no dependency on how the change set
// was produced.
type EntityChange struct {
	// EntityName is the logical type name of the entity.
	EntityName string

	// PrimaryKey holds the string-normalized key components. Composite
	// keys have more than one component.
	PrimaryKey []string

	// State is the persistence state (added, modified, deleted).
	State EntityState

	// Fields are the tracked field values. For added entities only
	// Current is meaningful, for deleted entities only Old.
	Fields []FieldValue
}

// Recorder translates change sets into audit records and enqueues them. It
// runs inline on the request path and therefore never surfaces an error to
// the caller: bad entries are skipped and logged, enqueue failures are logged
// and swallowed. It never touches durable storage.
type Recorder struct {
	queue            *Queue
	logger           *zap.Logger
	excludedEntities map[string]struct{}
	excludedFields   map[string]struct{}
}

// NewRecorder creates a Recorder. The exclusion lists are resolved once into
// lookup sets; matching is case-insensitive.
func NewRecorder(queue *Queue, excludedEntities, excludedFields []string, logger *zap.Logger) *Recorder {
	return &Recorder{
		queue:            queue,
		logger:           logger.Named("audit-capture"),
		excludedEntities: lowerSet(excludedEntities),
		excludedFields:   lowerSet(excludedFields),
	}
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// Capture derives zero or more records from the change set and pushes them
// onto the queue. It may block briefly under backpressure but never fails the
// triggering transaction.
func (r *Recorder) Capture(ctx context.Context, changes []EntityChange) {
	if len(changes) == 0 {
		return
	}

	actor := ActorFromContext(ctx)
	now := time.Now().UTC()

	for i := range changes {
		change := &changes[i]

		if _, excluded := r.excludedEntities[strings.ToLower(change.EntityName)]; excluded {
			metrics.AuditCaptureSkipped.WithLabelValues("excluded_entity").Inc()
			continue
		}

		record, err := r.buildRecord(actor, now, change)
		if err != nil {
			// One bad entry must not stop the others in the same
			// change set.
			metrics.AuditCaptureSkipped.WithLabelValues("error").Inc()
			r.logger.Warn("skipping audit entry",
				zap.String("entity", change.EntityName),
				zap.String("state", change.State.String()),
				zap.String("error", err.Error()))
			continue
		}
		if record == nil {
			// No-op update, nothing changed.
			metrics.AuditCaptureSkipped.WithLabelValues("no_diff").Inc()
			continue
		}

		if err := r.queue.Enqueue(record); err != nil {
			metrics.AuditCaptureSkipped.WithLabelValues("enqueue").Inc()
			r.logger.Warn("audit record not enqueued",
				zap.String("entity", record.EntityName),
				zap.String("entity_id", record.EntityID),
				zap.String("error", err.Error()))
			continue
		}
		metrics.AuditRecordsCaptured.Inc()
	}
}

// buildRecord constructs a record per the capture rules. It returns
// (nil, nil) for no-op updates.
func (r *Recorder) buildRecord(actor Actor, now time.Time, change *EntityChange) (*Record, error) {
	if change.EntityName == "" {
		return nil, fmt.Errorf("entity name is empty")
	}
	entityID := strings.Join(change.PrimaryKey, CompositeKeyDelimiter)
	if entityID == "" {
		return nil, fmt.Errorf("primary key is empty")
	}

	record := &Record{
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		EntityName: change.EntityName,
		EntityID:   entityID,
		Timestamp:  now,
		IPAddress:  actor.IPAddress,
	}
	if record.ActorID == "" {
		record.ActorID = SystemActor
	}

	switch change.State {
	case StateAdded:
		record.Action = ActionCreate
		newValues, err := r.serializeValues(change.Fields, func(f *FieldValue) interface{} { return f.Current })
		if err != nil {
			return nil, err
		}
		record.NewValues = newValues

	case StateDeleted:
		record.Action = ActionDelete
		oldValues, err := r.serializeValues(change.Fields, func(f *FieldValue) interface{} { return f.Old })
		if err != nil {
			return nil, err
		}
		record.OldValues = oldValues

	case StateModified:
		record.Action = ActionUpdate
		affected, oldValues, newValues, err := r.diff(change.Fields)
		if err != nil {
			return nil, err
		}
		if len(affected) == 0 {
			return nil, nil
		}
		sort.Strings(affected)
		record.AffectedFields = strings.Join(affected, ",")
		record.OldValues = oldValues
		record.NewValues = newValues

	default:
		return nil, fmt.Errorf("unknown entity state %d", change.State)
	}

	return record, nil
}

// serializeValues renders a field->value JSON map, dropping excluded fields.
// Map key order is stable because encoding/json sorts string keys.
func (r *Recorder) serializeValues(fields []FieldValue, pick func(*FieldValue) interface{}) (string, error) {
	values := make(map[string]json.RawMessage, len(fields))
	for i := range fields {
		field := &fields[i]
		if r.fieldExcluded(field.Name) {
			continue
		}
		raw, err := json.Marshal(pick(field))
		if err != nil {
			return "", fmt.Errorf("serialize field %s: %w", field.Name, err)
		}
		values[field.Name] = raw
	}
	out, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("serialize values: %w", err)
	}
	return string(out), nil
}

// diff computes the field-level difference of a modified entity, excluding
// opted-out fields. Old and new snapshots only contain fields that changed.
func (r *Recorder) diff(fields []FieldValue) (affected []string, oldValues, newValues string, err error) {
	oldMap := make(map[string]json.RawMessage)
	newMap := make(map[string]json.RawMessage)

	for i := range fields {
		field := &fields[i]
		if r.fieldExcluded(field.Name) {
			continue
		}

		oldRaw, err := json.Marshal(field.Old)
		if err != nil {
			return nil, "", "", fmt.Errorf("serialize field %s: %w", field.Name, err)
		}
		newRaw, err := json.Marshal(field.Current)
		if err != nil {
			return nil, "", "", fmt.Errorf("serialize field %s: %w", field.Name, err)
		}
		if bytes.Equal(oldRaw, newRaw) {
			continue
		}

		affected = append(affected, field.Name)
		oldMap[field.Name] = oldRaw
		newMap[field.Name] = newRaw
	}

	if len(affected) == 0 {
		return nil, "", "", nil
	}

	oldOut, err := json.Marshal(oldMap)
	if err != nil {
		return nil, "", "", fmt.Errorf("serialize old values: %w", err)
	}
	newOut, err := json.Marshal(newMap)
	if err != nil {
		return nil, "", "", fmt.Errorf("serialize new values: %w", err)
	}
	return affected, string(oldOut), string(newOut), nil
}

func (r *Recorder) fieldExcluded(name string) bool {
	_, excluded := r.excludedFields[strings.ToLower(name)]
	return excluded
}
