// Package postgres reads table schemas from PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/typemap"
	"github.com/artpar/typemap/core/types"
)

// DefaultSchema is searched when no schema is configured.
const DefaultSchema = "public"

// Open creates a connection pool and verifies it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Source reads column descriptors from information_schema.
type Source struct {
	pool   *pgxpool.Pool
	schema string
}

// NewSource creates a source for tables in schemaName ("" means public).
func NewSource(pool *pgxpool.Pool, schemaName string) *Source {
	if schemaName == "" {
		schemaName = DefaultSchema
	}
	return &Source{pool: pool, schema: schemaName}
}

const columnsQuery = `
	SELECT
		c.column_name,
		c.data_type,
		c.udt_name,
		c.character_maximum_length,
		c.numeric_precision,
		c.numeric_scale,
		c.datetime_precision,
		c.is_nullable = 'YES',
		c.column_default,
		pk.column_name IS NOT NULL
	FROM information_schema.columns c
	LEFT JOIN (
		SELECT kcu.table_schema, kcu.table_name, kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk
		ON pk.table_schema = c.table_schema
		AND pk.table_name = c.table_name
		AND pk.column_name = c.column_name
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

// columnInfo is one row of columnsQuery.
type columnInfo struct {
	Name         string
	DataType     string
	UDTName      string
	CharLength   *int32
	NumPrecision *int32
	NumScale     *int32
	TimePrec     *int32
	Nullable     bool
	Default      *string
	PrimaryKey   bool
}

// Columns returns the columns of table in ordinal order.
func (s *Source) Columns(ctx context.Context, table string) ([]schema.RawColumn, error) {
	rows, err := s.pool.Query(ctx, columnsQuery, s.schema, table)
	if err != nil {
		return nil, fmt.Errorf("query columns of %s: %w", table, err)
	}

	infos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (columnInfo, error) {
		var ci columnInfo
		err := row.Scan(&ci.Name, &ci.DataType, &ci.UDTName, &ci.CharLength, &ci.NumPrecision,
			&ci.NumScale, &ci.TimePrec, &ci.Nullable, &ci.Default, &ci.PrimaryKey)
		return ci, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan columns of %s: %w", table, err)
	}

	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", schema.ErrTableNotFound, s.schema, table)
	}

	cols := make([]schema.RawColumn, 0, len(infos))
	for _, ci := range infos {
		cols = append(cols, ci.raw())
	}
	return cols, nil
}

func (ci columnInfo) raw() schema.RawColumn {
	c := schema.RawColumn{
		Name:       ci.Name,
		Null:       ci.Nullable,
		PrimaryKey: ci.PrimaryKey,
		Default:    parseDefault(ci.Default),
	}

	base := ci.DataType
	switch base {
	case "ARRAY", "USER-DEFINED":
		base = ci.UDTName
	}

	switch {
	case ci.CharLength != nil:
		c.Limit = int(*ci.CharLength)
		c.SQLType = fmt.Sprintf("%s(%d)", base, c.Limit)
	case base == "numeric" && ci.NumPrecision != nil:
		c.Precision = int(*ci.NumPrecision)
		c.SQLType = fmt.Sprintf("%s(%d", base, c.Precision)
		if ci.NumScale != nil {
			c.Scale = int(*ci.NumScale)
			c.SQLType += "," + strconv.Itoa(c.Scale)
		}
		c.SQLType += ")"
	case strings.HasPrefix(base, "time") && ci.TimePrec != nil:
		c.Precision = int(*ci.TimePrec)
		c.SQLType = fmt.Sprintf("%s(%d)", base, c.Precision)
	default:
		c.SQLType = base
	}
	return c
}

// parseDefault extracts the literal from a column_default expression such
// as 'draft'::character varying. Sequence defaults and other expressions
// computed by the server yield nil.
func parseDefault(expr *string) *string {
	if expr == nil {
		return nil
	}
	v := strings.TrimSpace(*expr)

	if strings.HasPrefix(v, "'") {
		end := strings.LastIndex(v, "'")
		if end <= 0 {
			return nil
		}
		lit := strings.ReplaceAll(v[1:end], "''", "'")
		return &lit
	}
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}
	if i := strings.Index(v, "::"); i > 0 {
		v = v[:i]
	}

	switch {
	case strings.EqualFold(v, "null"):
		return nil
	case strings.EqualFold(v, "true"), strings.EqualFold(v, "false"):
		v = strings.ToLower(v)
		return &v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return &v
	}
	return nil
}

// NewTypeMap returns the base map extended with PostgreSQL spellings.
func NewTypeMap(opts ...typemap.Option) *sqltypes.Map {
	m := sqltypes.New(opts...)
	RegisterTypes(m)
	return m
}

// RegisterTypes adds PostgreSQL type names the base map does not cover.
func RegisterTypes(m *sqltypes.Map) {
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^bytea`), types.Binary{}))
	sqltypes.Must(m.Alias(typemap.MustCompile(`(?i)^money`), "decimal"))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^(inet|cidr|macaddr|citext|interval)`), types.String{}))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^_`), types.JSON{}))
	sqltypes.Must(m.Alias(typemap.Name("int2"), "integer"))
	sqltypes.Must(m.Alias(typemap.Name("int4"), "integer"))
	sqltypes.Must(m.Alias(typemap.Name("int8"), "integer"))
	sqltypes.Must(m.Alias(typemap.Name("bool"), "boolean"))
}
