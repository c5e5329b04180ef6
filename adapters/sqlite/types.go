package sqlite

import (
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/typemap"
	"github.com/artpar/typemap/core/types"
)

// NewTypeMap returns the base map extended with SQLite spellings.
func NewTypeMap(opts ...typemap.Option) *sqltypes.Map {
	m := sqltypes.New(opts...)
	RegisterTypes(m)
	return m
}

// RegisterTypes adds SQLite's loose type names. Column types follow the
// affinity rules, so "BOOL" and an empty declared type need bindings of
// their own.
func RegisterTypes(m *sqltypes.Map) {
	sqltypes.Must(m.Register(typemap.MustCompile(`^$`), types.Value{}))
	sqltypes.Must(m.Register(typemap.MustCompile(`(?i)^bool$`), types.Boolean{}))
}
