package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/artpar/typemap/core/types"
)

// ErrTableNotFound is returned by a Source that knows nothing about a table.
var ErrTableNotFound = errors.New("table not found")

// RawColumn is a column as reported by the database.
type RawColumn struct {
	Name    string `json:"name" yaml:"name"`
	SQLType string `json:"sql_type" yaml:"type"`

	// Limit, Precision and Scale are zero when the source only encodes
	// them in SQLType ("varchar(255)").
	Limit     int `json:"limit,omitempty" yaml:"limit,omitempty"`
	Precision int `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int `json:"scale,omitempty" yaml:"scale,omitempty"`

	Null       bool    `json:"null" yaml:"null"`
	Default    *string `json:"default,omitempty" yaml:"default,omitempty"`
	PrimaryKey bool    `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// Column is the effective descriptor of one model attribute.
type Column struct {
	Name    string
	SQLType string
	Type    types.Handler

	Limit     int
	Precision int
	Scale     int

	Null       bool
	Default    any
	HasDefault bool
	PrimaryKey bool

	// Virtual columns exist only as attribute declarations.
	Virtual bool
}

// Source reads the raw columns of a table, in schema order.
type Source interface {
	Columns(ctx context.Context, table string) ([]RawColumn, error)
}

// StaticSource is an in-memory Source.
type StaticSource struct {
	mu     sync.RWMutex
	tables map[string][]RawColumn
}

// NewStaticSource creates an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{tables: make(map[string][]RawColumn)}
}

// Set replaces the columns of table.
func (s *StaticSource) Set(table string, cols []RawColumn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append([]RawColumn(nil), cols...)
}

// Columns implements Source.
func (s *StaticSource) Columns(_ context.Context, table string) ([]RawColumn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cols, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("%s: %w", table, ErrTableNotFound)
	}
	return append([]RawColumn(nil), cols...), nil
}

// Tables lists the known table names.
func (s *StaticSource) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	return names
}

// StringPtr is a convenience for building RawColumn defaults.
func StringPtr(s string) *string { return &s }
