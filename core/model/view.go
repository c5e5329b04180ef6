package model

import (
	"maps"

	"github.com/artpar/typemap/core/attribute"
	"github.com/artpar/typemap/core/convention"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/types"
)

// view is one immutable generation of a model's column views.
type view struct {
	attrsVersion uint64
	rawVersion   uint64
	epoch        uint64

	columns  []schema.Column
	names    []string
	hash     map[string]schema.Column
	types    map[string]types.Handler
	defaults map[string]any
	content  []schema.Column
}

func (v *view) current(attrs, raw, epoch uint64) bool {
	return v.attrsVersion == attrs && v.rawVersion == raw && v.epoch == epoch
}

func (m *Model) current() *view {
	attrs, raw, epoch := m.versions()
	if v := m.view.Load(); v != nil && v.current(attrs, raw, epoch) {
		return v
	}

	m.viewMu.Lock()
	defer m.viewMu.Unlock()

	// Versions are taken before reading, so a concurrent write leaves a
	// stale tag and the next read rebuilds.
	attrs, raw, epoch = m.versions()
	if v := m.view.Load(); v != nil && v.current(attrs, raw, epoch) {
		return v
	}

	v := m.build()
	v.attrsVersion, v.rawVersion, v.epoch = attrs, raw, epoch
	m.view.Store(v)

	if o := m.root.observer; o != nil {
		o.ObserveRecompute(m.name)
	}
	return v
}

func (m *Model) versions() (attrs, raw, epoch uint64) {
	return m.attrs.Version(), m.root.rawVersion.Load(), m.epoch.Load()
}

func (m *Model) build() *view {
	raw := m.rawColumns()
	decls := m.attrs.Declarations()

	declared := make(map[string]attribute.Override, len(decls))
	for _, d := range decls {
		declared[d.Name] = d.Override
	}

	v := &view{
		columns:  make([]schema.Column, 0, len(raw)+len(decls)),
		hash:     make(map[string]schema.Column, len(raw)+len(decls)),
		types:    make(map[string]types.Handler, len(raw)+len(decls)),
		defaults: make(map[string]any, len(raw)+len(decls)),
	}

	for _, rc := range raw {
		col := m.column(rc)
		if o, ok := declared[rc.Name]; ok {
			applyOverride(&col, o, rc.Default)
		}
		v.add(col)
	}

	for _, d := range decls {
		if _, exists := v.hash[d.Name]; exists {
			continue
		}
		v.add(virtualColumn(d))
	}

	pk := m.PrimaryKey()
	for _, col := range v.columns {
		if !col.PrimaryKey && convention.IsContentColumn(col.Name, pk) {
			v.content = append(v.content, col)
		}
	}
	return v
}

func (v *view) add(col schema.Column) {
	v.columns = append(v.columns, col)
	v.names = append(v.names, col.Name)
	v.hash[col.Name] = col
	v.types[col.Name] = col.Type
	v.defaults[col.Name] = col.Default
}

// column resolves a raw column through the type map.
func (m *Model) column(rc schema.RawColumn) schema.Column {
	h := types.Unknown
	if r := m.Types(); r != nil {
		h = r.Lookup(rc.SQLType)
	}

	col := schema.Column{
		Name:       rc.Name,
		SQLType:    rc.SQLType,
		Type:       h,
		Limit:      rc.Limit,
		Precision:  rc.Precision,
		Scale:      rc.Scale,
		Null:       rc.Null,
		PrimaryKey: rc.PrimaryKey || rc.Name == m.PrimaryKey(),
	}

	meta := h.Meta()
	if col.Limit == 0 {
		col.Limit = meta.Limit
	}
	if col.Precision == 0 {
		col.Precision = meta.Precision
	}
	if col.Scale == 0 {
		col.Scale = meta.Scale
	}

	if rc.Default != nil {
		col.Default = h.Cast(*rc.Default)
		col.HasDefault = true
	}
	return col
}

// applyOverride replaces the handler and default of a schema column. The
// size metadata follows the override handler.
func applyOverride(col *schema.Column, o attribute.Override, rawDefault *string) {
	if o.Type != nil {
		col.Type = o.Type
		meta := o.Type.Meta()
		col.Limit, col.Precision, col.Scale = meta.Limit, meta.Precision, meta.Scale

		if rawDefault != nil && !o.HasDefault {
			col.Default = col.Type.Cast(*rawDefault)
		}
	}
	if o.HasDefault {
		col.Default = col.Type.Cast(o.Default)
		col.HasDefault = true
	}
}

// virtualColumn describes a declared attribute the table lacks. It has no
// size metadata.
func virtualColumn(d attribute.Declaration) schema.Column {
	h := d.Type
	if h == nil {
		h = types.Unknown
	}
	col := schema.Column{
		Name:    d.Name,
		Type:    h,
		Null:    true,
		Virtual: true,
	}
	if d.HasDefault {
		col.Default = h.Cast(d.Default)
		col.HasDefault = true
	}
	return col
}

// Columns returns the effective columns in order: schema columns first,
// then declared attributes the table does not have.
func (m *Model) Columns() []schema.Column {
	return append([]schema.Column(nil), m.current().columns...)
}

// ColumnNames returns the names of Columns.
func (m *Model) ColumnNames() []string {
	return append([]string(nil), m.current().names...)
}

// ColumnsHash indexes Columns by name.
func (m *Model) ColumnsHash() map[string]schema.Column {
	return maps.Clone(m.current().hash)
}

// Column returns one effective column.
func (m *Model) Column(name string) (schema.Column, bool) {
	col, ok := m.current().hash[name]
	return col, ok
}

// ColumnTypes maps column names to their handlers.
func (m *Model) ColumnTypes() map[string]types.Handler {
	return maps.Clone(m.current().types)
}

// ColumnDefaults maps column names to their cast defaults. Columns without
// a default map to nil.
func (m *Model) ColumnDefaults() map[string]any {
	return maps.Clone(m.current().defaults)
}

// ContentColumns returns the columns that hold user content: everything
// but the primary key and the audit timestamps.
func (m *Model) ContentColumns() []schema.Column {
	return append([]schema.Column(nil), m.current().content...)
}

// AttributeNames returns the names of declared attributes, ancestors
// first.
func (m *Model) AttributeNames() []string {
	decls := m.attrs.Declarations()
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d.Name)
	}
	return names
}
