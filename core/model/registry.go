package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/typemap/core/attribute"
	"github.com/artpar/typemap/core/convention"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/types"
	"github.com/artpar/typemap/core/typemap"
)

var (
	// ErrUnknownModel is returned when a model name is not registered.
	ErrUnknownModel = errors.New("unknown model")

	// ErrDuplicateModel is returned when a model name is already taken.
	ErrDuplicateModel = errors.New("model already registered")
)

// ConflictError reports a table claimed by two root models.
type ConflictError struct {
	Table    string
	Existing string
	Model    string
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("table %q already claimed by model %q (registering %q)", e.Table, e.Existing, e.Model)
}

// Registry holds models by name.
type Registry struct {
	mu sync.RWMutex

	// models by name
	models map[string]*Model

	// tables to root model names
	tables map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
		tables: make(map[string]string),
	}
}

// Register adds a model. Root models claim their table; subclasses share
// their root's claim and require the root to be registered.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(m)
}

func (r *Registry) register(m *Model) error {
	if _, exists := r.models[m.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateModel, m.Name())
	}

	if m.Parent() == nil {
		if existing, claimed := r.tables[m.Table()]; claimed {
			return &ConflictError{Table: m.Table(), Existing: existing, Model: m.Name()}
		}
		r.tables[m.Table()] = m.Name()
	} else if p, ok := r.models[m.Parent().Name()]; !ok || p != m.Parent() {
		return fmt.Errorf("register %q: parent %q: %w", m.Name(), m.Parent().Name(), ErrUnknownModel)
	}

	r.models[m.Name()] = m
	return nil
}

// Unregister removes a model. Models with registered subclasses cannot be
// removed.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.models[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	for _, other := range r.models {
		if other.Parent() == m {
			return fmt.Errorf("model %q has subclass %q", name, other.Name())
		}
	}

	delete(r.models, name)
	if m.Parent() == nil {
		delete(r.tables, m.Table())
	}
	return nil
}

// Get returns a model by name.
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Lookup is like Get but returns ErrUnknownModel for missing names.
func (r *Registry) Lookup(name string) (*Model, error) {
	m, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// List returns all models sorted by name.
func (r *Registry) List() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Roots returns the models that own a table, sorted by name.
func (r *Registry) Roots() []*Model {
	var roots []*Model
	for _, m := range r.List() {
		if m.Parent() == nil {
			roots = append(roots, m)
		}
	}
	return roots
}

// Reload re-reads the columns of the named models from their sources and
// returns the roots that were reloaded. Subclasses reload their root. With
// no names, every root model that has a source reloads.
func (r *Registry) Reload(ctx context.Context, names ...string) ([]string, error) {
	var targets []*Model
	if len(names) == 0 {
		for _, m := range r.Roots() {
			if m.Source() != nil {
				targets = append(targets, m)
			}
		}
	} else {
		seen := make(map[*Model]bool, len(names))
		for _, name := range names {
			m, err := r.Lookup(name)
			if err != nil {
				return nil, err
			}
			if root := m.Root(); !seen[root] {
				seen[root] = true
				targets = append(targets, root)
			}
		}
	}

	reloaded := make([]string, 0, len(targets))
	for _, m := range targets {
		if err := m.LoadSchema(ctx); err != nil {
			return reloaded, err
		}
		reloaded = append(reloaded, m.Name())
	}
	return reloaded, nil
}

// Apply creates or updates models from definitions. Parents are handled
// before children, and attribute types are resolved through resolver.
// Re-applying a definition upserts its declarations; attributes removed
// from a definition stay declared.
//
// All definitions are checked before any model changes, so a failing
// Apply leaves the registry untouched. opts configure new root models.
func (r *Registry) Apply(defs []schema.Definition, resolver TypeResolver, opts ...Option) ([]*Model, error) {
	sorted, err := schema.SortDefinitions(defs)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	plans := make([]plan, 0, len(sorted))
	pending := make(map[string]schema.Definition, len(sorted))
	for _, def := range sorted {
		p, err := r.plan(def, pending, resolver)
		if err != nil {
			return nil, fmt.Errorf("apply model %q: %w", def.Model, err)
		}
		plans = append(plans, p)
		pending[def.Model] = def
	}

	applied := make([]*Model, 0, len(plans))
	for _, p := range plans {
		m, err := r.execute(p, resolver, opts)
		if err != nil {
			return applied, fmt.Errorf("apply model %q: %w", p.def.Model, err)
		}
		applied = append(applied, m)
	}
	return applied, nil
}

type plan struct {
	def      schema.Definition
	existing *Model
	handlers []types.Handler
}

func (r *Registry) plan(def schema.Definition, pending map[string]schema.Definition, resolver TypeResolver) (plan, error) {
	p := plan{def: def, existing: r.models[def.Model]}

	if p.existing != nil {
		parent := ""
		if p.existing.Parent() != nil {
			parent = p.existing.Parent().Name()
		}
		if parent != def.Extends {
			return p, fmt.Errorf("cannot change parent from %q to %q", parent, def.Extends)
		}
		if def.IsRoot() {
			if table := convention.Derive(def).Table; table != p.existing.Table() {
				return p, fmt.Errorf("cannot change table from %q to %q", p.existing.Table(), table)
			}
		}
	} else if def.Extends != "" {
		if _, ok := r.models[def.Extends]; !ok {
			if _, ok := pending[def.Extends]; !ok {
				return p, fmt.Errorf("parent %q: %w", def.Extends, ErrUnknownModel)
			}
		}
	} else {
		table := convention.Derive(def).Table
		if owner, claimed := r.tables[table]; claimed {
			return p, &ConflictError{Table: table, Existing: owner, Model: def.Model}
		}
		for _, other := range pending {
			if other.IsRoot() && convention.Derive(other).Table == table {
				return p, &ConflictError{Table: table, Existing: other.Model, Model: def.Model}
			}
		}
	}

	var errs []string
	for _, attr := range def.Attributes {
		var h types.Handler
		if attr.Type != "" {
			if resolver == nil {
				return p, fmt.Errorf("attribute %q: no type resolver", attr.Name)
			}
			h = resolver.Lookup(attr.Type)
			if types.IsUnknown(h) && typemap.BaseName(attr.Type) != string(types.KindValue) {
				errs = append(errs, fmt.Sprintf("attribute %q: unknown type %q", attr.Name, attr.Type))
			}
		}
		p.handlers = append(p.handlers, h)
	}
	if len(errs) > 0 {
		return p, fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return p, nil
}

func (r *Registry) execute(p plan, resolver TypeResolver, opts []Option) (*Model, error) {
	m := p.existing
	if m == nil {
		if p.def.IsRoot() {
			derived := convention.Derive(p.def)
			rootOpts := append([]Option{
				WithTable(derived.Table),
				WithPrimaryKey(derived.PrimaryKey),
				WithTypes(resolver),
			}, opts...)
			m = New(p.def.Model, rootOpts...)
			if len(derived.Columns) > 0 {
				m.SetSchema(derived.Columns)
			}
		} else {
			m = r.models[p.def.Extends].Subclass(p.def.Model)
		}
		if err := r.register(m); err != nil {
			return nil, err
		}
	} else if p.def.IsRoot() {
		if derived := convention.Derive(p.def); len(derived.Columns) > 0 {
			m.SetSchema(derived.Columns)
		}
	}

	if p.def.Description != "" {
		m.SetDescription(p.def.Description)
	}

	for i, attr := range p.def.Attributes {
		var declOpts []attribute.Option
		if attr.HasDefault {
			declOpts = append(declOpts, attribute.WithDefault(attr.Default))
		}
		if err := m.Attribute(attr.Name, p.handlers[i], declOpts...); err != nil {
			return nil, err
		}
	}
	return m, nil
}
