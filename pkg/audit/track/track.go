// Package track adapts live entity values into the abstract change sets the
// audit pipeline consumes. It walks entity structs with reflection and
// produces per-field old/current value pairs; the pipeline itself stays free
// of any persistence technology.
package track

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/adminsuite/backoffice/pkg/audit"
)

// Key normalizes primary-key components to strings. Composite keys pass
// every component.
func Key(components ...interface{}) []string {
	key := make([]string, 0, len(components))
	for _, c := range components {
		key = append(key, fmt.Sprint(c))
	}
	return key
}

// Created builds the change entry for a newly persisted entity.
func Created(entityName string, primaryKey []string, entity interface{}) audit.EntityChange {
	fields := snapshot(entity)
	for i := range fields {
		fields[i].Old = nil
	}
	return audit.EntityChange{
		EntityName: entityName,
		PrimaryKey: primaryKey,
		State:      audit.StateAdded,
		Fields:     fields,
	}
}

// Updated builds the change entry for a modified entity from its old and
// current state. The pipeline computes the actual diff.
func Updated(entityName string, primaryKey []string, old, current interface{}) audit.EntityChange {
	oldFields := snapshot(old)
	oldByName := make(map[string]interface{}, len(oldFields))
	for i := range oldFields {
		oldByName[oldFields[i].Name] = oldFields[i].Current
	}

	fields := snapshot(current)
	for i := range fields {
		fields[i].Old = oldByName[fields[i].Name]
	}
	return audit.EntityChange{
		EntityName: entityName,
		PrimaryKey: primaryKey,
		State:      audit.StateModified,
		Fields:     fields,
	}
}

// Deleted builds the change entry for a removed entity.
func Deleted(entityName string, primaryKey []string, entity interface{}) audit.EntityChange {
	fields := snapshot(entity)
	for i := range fields {
		fields[i].Old = fields[i].Current
		fields[i].Current = nil
	}
	return audit.EntityChange{
		EntityName: entityName,
		PrimaryKey: primaryKey,
		State:      audit.StateDeleted,
		Fields:     fields,
	}
}

// snapshot extracts the trackable scalar fields of an entity struct into
// FieldValue entries with Current set. Associations (nested structs, slices,
// maps) are not tracked; they audit through their own entities.
func snapshot(entity interface{}) []audit.FieldValue {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	fields := make([]audit.FieldValue, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		if sf.Tag.Get("gorm") == "-" {
			continue
		}

		value, ok := scalarValue(v.Field(i))
		if !ok {
			continue
		}
		fields = append(fields, audit.FieldValue{
			Name:    fieldName(sf),
			Current: value,
		})
	}
	return fields
}

// scalarValue unwraps a field to a trackable value. ok is false for
// association-like fields.
func scalarValue(v reflect.Value) (interface{}, bool) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		if t, isTime := v.Interface().(time.Time); isTime {
			return t, true
		}
		return nil, false
	case reflect.Slice, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return nil, false
	default:
		return v.Interface(), true
	}
}

// fieldName prefers the json tag name, falling back to the lower-camel form
// of the Go field name so exclusion lists match either way.
func fieldName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return lowerCamel(sf.Name)
}

func lowerCamel(name string) string {
	if name == "" {
		return name
	}
	// Keep fully uppercased prefixes readable: SKU -> sku, ID -> id.
	upper := 0
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			upper++
			continue
		}
		break
	}
	if upper == len(name) {
		return strings.ToLower(name)
	}
	if upper > 1 {
		upper--
	}
	if upper == 0 {
		upper = 1
	}
	return strings.ToLower(name[:upper]) + name[upper:]
}
