package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/types"
)

func i32(n int32) *int32 { return &n }

func str(s string) *string { return &s }

func TestColumnInfo_Raw(t *testing.T) {
	tests := []struct {
		name string
		in   columnInfo
		want schema.RawColumn
	}{
		{
			name: "varchar",
			in:   columnInfo{Name: "title", DataType: "character varying", CharLength: i32(255), Nullable: true},
			want: schema.RawColumn{Name: "title", SQLType: "character varying(255)", Limit: 255, Null: true},
		},
		{
			name: "numeric",
			in:   columnInfo{Name: "price", DataType: "numeric", NumPrecision: i32(10), NumScale: i32(2)},
			want: schema.RawColumn{Name: "price", SQLType: "numeric(10,2)", Precision: 10, Scale: 2},
		},
		{
			name: "timestamp",
			in:   columnInfo{Name: "created_at", DataType: "timestamp without time zone", TimePrec: i32(6)},
			want: schema.RawColumn{Name: "created_at", SQLType: "timestamp without time zone(6)", Precision: 6},
		},
		{
			name: "array",
			in:   columnInfo{Name: "tags", DataType: "ARRAY", UDTName: "_text", Nullable: true},
			want: schema.RawColumn{Name: "tags", SQLType: "_text", Null: true},
		},
		{
			name: "serial primary key",
			in:   columnInfo{Name: "id", DataType: "integer", PrimaryKey: true, Default: str("nextval('posts_id_seq'::regclass)")},
			want: schema.RawColumn{Name: "id", SQLType: "integer", PrimaryKey: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.raw()
			if got.Name != tt.want.Name || got.SQLType != tt.want.SQLType || got.Limit != tt.want.Limit ||
				got.Precision != tt.want.Precision || got.Scale != tt.want.Scale ||
				got.Null != tt.want.Null || got.PrimaryKey != tt.want.PrimaryKey || got.Default != nil {
				t.Errorf("raw() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseDefault(t *testing.T) {
	tests := []struct {
		expr string
		want *string
	}{
		{"'draft'::character varying", str("draft")},
		{"'it''s'::text", str("it's")},
		{"0", str("0")},
		{"(-1)", str("-1")},
		{"1.5::numeric", str("1.5")},
		{"true", str("true")},
		{"NULL::character varying", nil},
		{"nextval('posts_id_seq'::regclass)", nil},
		{"now()", nil},
	}

	for _, tt := range tests {
		got := parseDefault(&tt.expr)
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil || *got != *tt.want:
			t.Errorf("parseDefault(%q) = %v, want %v", tt.expr, deref(got), deref(tt.want))
		}
	}

	if parseDefault(nil) != nil {
		t.Error("parseDefault(nil) should be nil")
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestTypeMap_PostgresSpellings(t *testing.T) {
	m := NewTypeMap()

	tests := []struct {
		descriptor string
		want       types.Handler
	}{
		{"character varying(255)", types.NewString(255)},
		{"bytea", types.Binary{}},
		{"int8", types.Integer{}},
		{"bool", types.Boolean{}},
		{"double precision", types.Float{}},
		{"jsonb", types.JSON{}},
		{"_text", types.JSON{}},
		{"inet", types.String{}},
		{"money", types.Decimal{}},
		{"numeric(10,2)", types.Decimal{Options: types.Options{Precision: 10, Scale: 2}}},
		{"timestamp without time zone(6)", types.DateTime{Options: types.Options{Precision: 6}}},
	}

	for _, tt := range tests {
		if got := m.Lookup(tt.descriptor); got != tt.want {
			t.Errorf("Lookup(%q) = %#v, want %#v", tt.descriptor, got, tt.want)
		}
	}
}

func TestSource_Columns(t *testing.T) {
	dsn := os.Getenv("TYPEMAP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TYPEMAP_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	pool, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TEMP TABLE typemap_posts (
			id serial PRIMARY KEY,
			title varchar(50) NOT NULL DEFAULT 'untitled',
			price numeric(10,2)
		)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	var tempSchema string
	pool.QueryRow(ctx, "SELECT nspname FROM pg_namespace WHERE oid = pg_my_temp_schema()").Scan(&tempSchema)

	cols, err := NewSource(pool, tempSchema).Columns(ctx, "typemap_posts")
	if err != nil {
		t.Fatalf("Columns() error = %v", err)
	}
	if len(cols) != 3 {
		t.Fatalf("Columns() returned %d columns, want 3", len(cols))
	}
	if !cols[0].PrimaryKey || cols[0].Default != nil {
		t.Errorf("id = %+v, want primary key without default", cols[0])
	}
	if cols[1].Limit != 50 || cols[1].Null || deref(cols[1].Default) != "untitled" {
		t.Errorf("title = %+v", cols[1])
	}
	if cols[2].Precision != 10 || cols[2].Scale != 2 {
		t.Errorf("price = %+v", cols[2])
	}

	_, err = NewSource(pool, tempSchema).Columns(ctx, "missing")
	if !errors.Is(err, schema.ErrTableNotFound) {
		t.Errorf("Columns(missing) error = %v, want ErrTableNotFound", err)
	}
}
