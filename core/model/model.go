// Package model maps tables to record classes.
//
// A Model combines the raw columns a schema.Source reports with the
// attribute overrides declared on the model and its ancestors. The
// resulting column views are computed on first use and memoized until the
// raw schema or any table in the override chain changes.
package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/artpar/typemap/core/attribute"
	"github.com/artpar/typemap/core/convention"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/types"
)

// TypeResolver maps a raw type descriptor to a handler. A
// *typemap.Fuzzy[types.Handler] satisfies it.
type TypeResolver interface {
	Lookup(descriptor string, args ...any) types.Handler
}

// Observer is notified of schema cache activity.
type Observer interface {
	ObserveRecompute(model string)
	ObserveDeclare(model string)
}

// Option configures a root model.
type Option func(*Model)

// WithTable overrides the conventional table name.
func WithTable(table string) Option {
	return func(m *Model) { m.table = table }
}

// WithPrimaryKey overrides the "id" primary key.
func WithPrimaryKey(pk string) Option {
	return func(m *Model) { m.primaryKey = pk }
}

// WithTypes sets the resolver used for raw column types.
func WithTypes(r TypeResolver) Option {
	return func(m *Model) { m.types = r }
}

// WithSource sets where LoadSchema reads columns from.
func WithSource(src schema.Source) Option {
	return func(m *Model) { m.source = src }
}

// WithObserver reports recomputes and declarations.
func WithObserver(o Observer) Option {
	return func(m *Model) { m.observer = o }
}

// WithDescription attaches documentation shown by introspection.
func WithDescription(desc string) Option {
	return func(m *Model) { m.description.Store(desc) }
}

// Model is a record class bound to a table.
type Model struct {
	name        string
	description atomic.Value // string
	parent      *Model
	root        *Model

	table      string
	primaryKey string
	types      TypeResolver
	source     schema.Source
	observer   Observer

	attrs *attribute.Table

	// Raw schema, only used on the root.
	rawMu      sync.RWMutex
	raw        []schema.RawColumn
	loaded     bool
	rawVersion atomic.Uint64

	viewMu sync.Mutex // serializes recomputes
	view   atomic.Pointer[view]
	epoch  atomic.Uint64
}

// New creates a root model.
func New(name string, opts ...Option) *Model {
	m := &Model{
		name:  name,
		attrs: attribute.New(),
	}
	m.root = m
	for _, opt := range opts {
		opt(m)
	}
	if m.table == "" {
		m.table = convention.TableName(name)
	}
	if m.primaryKey == "" {
		m.primaryKey = convention.DefaultPrimaryKey
	}
	return m
}

// Subclass creates a model that shares m's table and inherits its
// attribute overrides. Declarations on the subclass never affect m.
func (m *Model) Subclass(name string) *Model {
	return &Model{
		name:   name,
		parent: m,
		root:   m.root,
		attrs:  m.attrs.Inherit(),
	}
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Description returns the model documentation, if any.
func (m *Model) Description() string {
	desc, _ := m.description.Load().(string)
	return desc
}

// SetDescription replaces the model documentation.
func (m *Model) SetDescription(desc string) { m.description.Store(desc) }

// Parent returns the model m was subclassed from, nil for roots.
func (m *Model) Parent() *Model { return m.parent }

// Root returns the model owning the table.
func (m *Model) Root() *Model { return m.root }

// Table returns the table name.
func (m *Model) Table() string { return m.root.table }

// PrimaryKey returns the primary key column name.
func (m *Model) PrimaryKey() string { return m.root.primaryKey }

// Types returns the type resolver for raw columns.
func (m *Model) Types() TypeResolver { return m.root.types }

// Source returns where LoadSchema reads columns from, nil if unset.
func (m *Model) Source() schema.Source { return m.root.source }

// Attributes returns the model's override table.
func (m *Model) Attributes() *attribute.Table { return m.attrs }

// Attribute declares that name uses handler h, and optionally a default,
// on this model and its subclasses.
func (m *Model) Attribute(name string, h types.Handler, opts ...attribute.Option) error {
	if err := m.attrs.Declare(name, h, opts...); err != nil {
		return fmt.Errorf("declare %s.%s: %w", m.name, name, err)
	}
	m.Invalidate()
	if o := m.root.observer; o != nil {
		o.ObserveDeclare(m.name)
	}
	return nil
}

// Declarations returns the effective attribute overrides in order.
func (m *Model) Declarations() []attribute.Declaration {
	return m.attrs.Declarations()
}

// LoadSchema reads the raw columns from the model's source. Subclasses
// load into their root.
func (m *Model) LoadSchema(ctx context.Context) error {
	root := m.root
	if root.source == nil {
		return fmt.Errorf("load schema for %s: no schema source", m.name)
	}

	cols, err := root.source.Columns(ctx, root.table)
	if err != nil {
		return fmt.Errorf("load schema for %s: %w", m.name, err)
	}

	root.SetSchema(cols)
	return nil
}

// SetSchema replaces the raw columns directly.
func (m *Model) SetSchema(cols []schema.RawColumn) {
	root := m.root
	root.rawMu.Lock()
	root.raw = append([]schema.RawColumn(nil), cols...)
	root.loaded = true
	root.rawMu.Unlock()
	root.rawVersion.Add(1)
}

// SchemaLoaded reports whether raw columns have been set.
func (m *Model) SchemaLoaded() bool {
	root := m.root
	root.rawMu.RLock()
	defer root.rawMu.RUnlock()
	return root.loaded
}

func (m *Model) rawColumns() []schema.RawColumn {
	root := m.root
	root.rawMu.RLock()
	defer root.rawMu.RUnlock()
	return root.raw
}

// Invalidate drops this model's memoized views. Other models, including
// subclasses, are unaffected.
func (m *Model) Invalidate() {
	m.epoch.Add(1)
}
