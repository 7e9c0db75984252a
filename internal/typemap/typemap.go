// Package typemap converts raw SQL type names into the four logical types of
// the entity store.
package typemap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/sqlimport/internal/schema"
)

// builtin is keyed by upper-cased raw type
var builtin = map[string]schema.LogicalType{
	"CHAR":              schema.String,
	"VARCHAR":           schema.String,
	"VARCHAR2":          schema.String,
	"CHARACTER":         schema.String,
	"CHARACTER VARYING": schema.String,
	"DECIMAL":           schema.Float,
	"NUMBER":            schema.Float,
	"INT":               schema.Integer,
	"INTEGER":           schema.Integer,
	"BOOL":              schema.Boolean,
	"BOOLEAN":           schema.Boolean,
}

// Mapper maps raw types, consulting configured overrides before the
// built-in table
type Mapper struct {
	overrides map[string]schema.LogicalType
	onUnknown func(rawType string)
}

// New creates a mapper. onUnknown, when non-nil, is called with every raw
// type that falls back to String.
func New(overrides map[string]schema.LogicalType, onUnknown func(rawType string)) *Mapper {
	m := &Mapper{
		overrides: make(map[string]schema.LogicalType, len(overrides)),
		onUnknown: onUnknown,
	}
	for raw, lt := range overrides {
		m.overrides[strings.ToUpper(raw)] = lt
	}
	return m
}

// Map returns the logical type for a raw type. An empty raw type has no
// logical type and is not reported.
func (m *Mapper) Map(rawType string) schema.LogicalType {
	if rawType == "" {
		return ""
	}

	key := strings.ToUpper(rawType)
	if lt, ok := m.overrides[key]; ok {
		return lt
	}
	if lt, ok := builtin[key]; ok {
		return lt
	}

	if m.onUnknown != nil {
		m.onUnknown(rawType)
	}
	return schema.String
}

// Apply sets LogicalType on every column of every table
func (m *Mapper) Apply(s *schema.Schema) {
	for _, table := range s.Tables {
		for _, col := range table.Columns() {
			col.LogicalType = m.Map(col.Type)
		}
	}
}

// ParseOverrides validates a raw type to logical type configuration map.
// Logical type names are matched case-insensitively.
func ParseOverrides(raw map[string]string) (map[string]schema.LogicalType, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// sorted so the reported error does not depend on map order
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	overrides := make(map[string]schema.LogicalType, len(raw))
	for _, k := range keys {
		lt, err := ParseLogicalType(raw[k])
		if err != nil {
			return nil, fmt.Errorf("invalid type override for %q: %w", k, err)
		}
		overrides[k] = lt
	}
	return overrides, nil
}

// ParseLogicalType parses one of String, Float, Integer or Boolean
func ParseLogicalType(name string) (schema.LogicalType, error) {
	for _, lt := range []schema.LogicalType{schema.String, schema.Float, schema.Integer, schema.Boolean} {
		if strings.EqualFold(name, string(lt)) {
			return lt, nil
		}
	}
	return "", fmt.Errorf("unknown logical type %q (want String, Float, Integer or Boolean)", name)
}
