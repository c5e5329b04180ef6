// Package convention derives defaults from minimal model definitions.
// It applies naming conventions and the implicit primary key.
package convention

import (
	"strings"
	"unicode"

	"github.com/artpar/typemap/core/schema"
)

// DefaultPrimaryKey is used when a definition does not name one.
const DefaultPrimaryKey = "id"

// auditColumns are maintained by the persistence layer, not by users.
var auditColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"created_on": true,
	"updated_on": true,
}

// Derived is a definition with all conventions applied.
type Derived struct {
	// Source is the original definition.
	Source schema.Definition

	// Table is the database table name.
	Table string

	// PrimaryKey is the primary key column name.
	PrimaryKey string

	// Columns lists the inline columns, primary key first when it was
	// implicit. Empty when the definition relies on a database.
	Columns []schema.RawColumn
}

// Derive applies conventions to a root definition.
func Derive(def schema.Definition) Derived {
	d := Derived{
		Source:     def,
		Table:      def.Table,
		PrimaryKey: def.PrimaryKey,
	}
	if d.Table == "" {
		d.Table = TableName(def.Model)
	}
	if d.PrimaryKey == "" {
		d.PrimaryKey = DefaultPrimaryKey
	}
	d.Columns = deriveColumns(def.Columns, d.PrimaryKey)
	return d
}

// deriveColumns marks the primary key and adds it when missing.
func deriveColumns(cols []schema.RawColumn, pk string) []schema.RawColumn {
	if len(cols) == 0 {
		return nil
	}

	out := make([]schema.RawColumn, 0, len(cols)+1)
	found := false
	for _, c := range cols {
		if c.Name == pk {
			c.PrimaryKey = true
			found = true
		}
		out = append(out, c)
	}
	if !found {
		out = append([]schema.RawColumn{{
			Name:       pk,
			SQLType:    "integer",
			PrimaryKey: true,
		}}, out...)
	}
	return out
}

// TableName returns the conventional table for a model name:
// "OverloadedType" and "overloaded_type" both become "overloaded_types".
func TableName(model string) string {
	snake := Underscore(model)
	if snake == "" {
		return ""
	}
	i := strings.LastIndexByte(snake, '_')
	return snake[:i+1] + pluralizeSegment(snake[i+1:])
}

// Underscore converts CamelCase to snake_case.
func Underscore(name string) string {
	var b strings.Builder
	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && runes[i-1] != '_' &&
				(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		if r == '-' || r == ' ' {
			r = '_'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsAuditColumn reports whether name is a timestamp the persistence layer
// maintains.
func IsAuditColumn(name string) bool {
	return auditColumns[name]
}

// IsContentColumn reports whether a column holds user content: anything
// but the primary key and the audit timestamps.
func IsContentColumn(name, primaryKey string) bool {
	return name != primaryKey && !IsAuditColumn(name)
}
