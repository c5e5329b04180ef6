// Package attribute holds per-model attribute overrides.
//
// A Table maps field names to a replacement type handler and/or default
// value. Child tables overlay their parent: reads fall through to ancestors,
// writes only ever touch the child.
package attribute

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/artpar/typemap/core/types"
)

// ErrEmptyName is returned when declaring an attribute without a name.
var ErrEmptyName = errors.New("attribute name is required")

// clock hands out versions shared by every table, so a version taken from
// any table in a chain orders against all others.
var clock atomic.Uint64

func tick() uint64 { return clock.Add(1) }

// Override replaces what schema introspection reports for one field.
// A nil Type keeps the schema's handler.
type Override struct {
	Type       types.Handler
	Default    any
	HasDefault bool
}

// Declaration is a named override.
type Declaration struct {
	Name string `json:"name"`
	Override
}

// Option configures a declaration.
type Option func(*Override)

// WithDefault sets the default value for new records. A nil v is a real
// default (NULL), distinct from not declaring one.
func WithDefault(v any) Option {
	return func(o *Override) {
		o.Default = v
		o.HasDefault = true
	}
}

// Table is one model's override table.
type Table struct {
	parent *Table

	mu      sync.RWMutex
	local   map[string]Override
	order   []string
	version uint64
}

// New creates an empty root table.
func New() *Table {
	return &Table{
		local:   make(map[string]Override),
		version: tick(),
	}
}

// Inherit returns an empty table layered over t. Nothing is copied, so
// later declarations on t are visible through the child.
func (t *Table) Inherit() *Table {
	child := New()
	child.parent = t
	return child
}

// Parent returns the table t inherits from, nil for a root.
func (t *Table) Parent() *Table { return t.parent }

// Declare sets the override for name on t only.
func (t *Table) Declare(name string, h types.Handler, opts ...Option) error {
	if name == "" {
		return ErrEmptyName
	}

	o := Override{Type: h}
	for _, opt := range opts {
		opt(&o)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.local[name]; !exists {
		t.order = append(t.order, name)
	}
	t.local[name] = o
	t.version = tick()
	return nil
}

// Resolve returns the effective override for name, looking at t first and
// then its ancestors.
func (t *Table) Resolve(name string) (Override, bool) {
	for cur := t; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		o, ok := cur.local[name]
		cur.mu.RUnlock()
		if ok {
			return o, true
		}
	}
	return Override{}, false
}

// Declarations returns the effective overrides in declaration order.
// Ancestor declarations come first; a name re-declared by a descendant
// keeps the ancestor's position and takes the descendant's value.
func (t *Table) Declarations() []Declaration {
	var chain []*Table
	for cur := t; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}

	var out []Declaration
	index := make(map[string]int)
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		cur.mu.RLock()
		for _, name := range cur.order {
			d := Declaration{Name: name, Override: cur.local[name]}
			if pos, seen := index[name]; seen {
				out[pos] = d
				continue
			}
			index[name] = len(out)
			out = append(out, d)
		}
		cur.mu.RUnlock()
	}
	return out
}

// Local returns only the declarations made on t, in order.
func (t *Table) Local() []Declaration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Declaration, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, Declaration{Name: name, Override: t.local[name]})
	}
	return out
}

// Version changes whenever t or any ancestor gains a declaration.
func (t *Table) Version() uint64 {
	var v uint64
	for cur := t; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		if cur.version > v {
			v = cur.version
		}
		cur.mu.RUnlock()
	}
	return v
}
