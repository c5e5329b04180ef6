// Package mysql reads table schemas from MySQL and MariaDB.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/typemap"
	"github.com/artpar/typemap/core/types"
)

// Open connects with dsn. Time columns are always parsed into time.Time.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", cfg.Addr, err)
	}
	return db, nil
}

// Source reads column descriptors from information_schema for the
// connection's current database.
type Source struct {
	db *sql.DB
}

// NewSource creates a schema source over db.
func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

// Columns returns the columns of table in ordinal order.
func (s *Source) Columns(ctx context.Context, table string) ([]schema.RawColumn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY
		FROM information_schema.columns
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.RawColumn
	for rows.Next() {
		var name, columnType, nullable, key string
		var dflt sql.NullString
		if err := rows.Scan(&name, &columnType, &nullable, &dflt, &key); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols = append(cols, rawColumn(name, columnType, nullable == "YES", dflt, key == "PRI"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}

	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", schema.ErrTableNotFound, table)
	}
	return cols, nil
}

func rawColumn(name, columnType string, null bool, dflt sql.NullString, pk bool) schema.RawColumn {
	c := schema.RawColumn{
		Name:       name,
		SQLType:    strings.ToLower(columnType),
		Null:       null,
		PrimaryKey: pk,
	}

	base := typemap.BaseName(c.SQLType)
	switch {
	case strings.HasPrefix(base, "enum"), strings.HasPrefix(base, "set"):
		// The parenthesised part lists members, not a size.
	case strings.HasPrefix(base, "decimal"), strings.HasPrefix(base, "numeric"):
		c.Precision = typemap.ExtractPrecision(c.SQLType)
		c.Scale = typemap.ExtractScale(c.SQLType)
	case strings.HasPrefix(base, "datetime"), strings.HasPrefix(base, "timestamp"), strings.HasPrefix(base, "time"):
		c.Precision = typemap.ExtractPrecision(c.SQLType)
	default:
		c.Limit = typemap.ExtractLimit(c.SQLType)
	}

	// MariaDB reports string defaults quoted and NULL as a literal.
	if dflt.Valid && !strings.EqualFold(dflt.String, "null") {
		v := dflt.String
		if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
			v = strings.ReplaceAll(v[1:len(v)-1], "''", "'")
		}
		c.Default = &v
	}
	return c
}

// NewTypeMap returns the base map extended with MySQL spellings.
func NewTypeMap(opts ...typemap.Option) *sqltypes.Map {
	m := sqltypes.New(opts...)
	RegisterTypes(m)
	return m
}

// RegisterTypes adds MySQL type names the base map does not cover.
// tinyint(1) is the conventional boolean.
func RegisterTypes(m *sqltypes.Map) {
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^(enum|set)\b`), types.String{}))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^year`), types.Integer{}))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^bit`), types.Binary{}))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^tinyint\(1\)`), types.Boolean{}))
}
