package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/typemap"
)

// Source reads column descriptors with PRAGMA table_info.
type Source struct {
	db *DB
}

// NewSource creates a schema source over db.
func NewSource(db *DB) *Source {
	return &Source{db: db}
}

// Columns returns the columns of table in declaration order.
func (s *Source) Columns(ctx context.Context, table string) ([]schema.RawColumn, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.RawColumn
	for rows.Next() {
		var (
			cid     int
			name    string
			sqlType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &sqlType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, rawColumn(name, sqlType, notNull == 0, dflt, pk > 0))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", schema.ErrTableNotFound, table)
	}
	return cols, nil
}

// Tables lists user tables, skipping sqlite internals and migration
// bookkeeping.
func (s *Source) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'schema_migrations'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func rawColumn(name, sqlType string, null bool, dflt sql.NullString, pk bool) schema.RawColumn {
	c := schema.RawColumn{
		Name:       name,
		SQLType:    strings.ToLower(sqlType),
		Null:       null && !pk,
		PrimaryKey: pk,
	}

	base := typemap.BaseName(c.SQLType)
	switch {
	case strings.Contains(base, "decimal"), strings.Contains(base, "numeric"):
		c.Precision = typemap.ExtractPrecision(c.SQLType)
		c.Scale = typemap.ExtractScale(c.SQLType)
	case strings.Contains(base, "time"):
		c.Precision = typemap.ExtractPrecision(c.SQLType)
	default:
		c.Limit = typemap.ExtractLimit(c.SQLType)
	}

	if v, ok := unquoteDefault(dflt); ok {
		c.Default = &v
	}
	return c
}

// unquoteDefault turns the SQL literal reported by table_info into the raw
// default string. NULL means no default.
func unquoteDefault(dflt sql.NullString) (string, bool) {
	if !dflt.Valid {
		return "", false
	}
	v := strings.TrimSpace(dflt.String)
	if strings.EqualFold(v, "null") {
		return "", false
	}
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		q := string(v[0])
		return strings.ReplaceAll(v[1:len(v)-1], q+q, q), true
	}
	return v, true
}
