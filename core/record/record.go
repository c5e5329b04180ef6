// Package record holds attribute values for one row of a model.
//
// Values are cast through the model's effective column types on every
// assignment, so a record of a model that overrides a float column with an
// integer handler stores integers. Names that are neither schema columns
// nor declared attributes are rejected with an UnknownAttributeError.
package record

import (
	"errors"
	"fmt"
	"sort"

	"github.com/artpar/typemap/core/model"
)

// ErrUnknownAttribute matches every UnknownAttributeError.
var ErrUnknownAttribute = errors.New("unknown attribute")

// UnknownAttributeError reports access to a name the model does not have.
type UnknownAttributeError struct {
	Model string
	Name  string
}

func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("unknown attribute %q for %s", e.Name, e.Model)
}

func (e *UnknownAttributeError) Unwrap() error { return ErrUnknownAttribute }

// Record is a set of attribute values. It is not safe for concurrent use.
type Record struct {
	model     *model.Model
	values    map[string]any
	changed   map[string]bool
	persisted bool
}

// New builds a record with the model's defaults, then assigns attrs.
func New(m *model.Model, attrs map[string]any) (*Record, error) {
	r := &Record{
		model:   m,
		values:  make(map[string]any),
		changed: make(map[string]bool),
	}
	for _, col := range m.Columns() {
		r.values[col.Name] = col.Type.Cast(col.Default)
	}

	// Sorted so that the first unknown name reported is deterministic.
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.Set(name, attrs[name]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Load builds a persisted record from stored values. Columns missing from
// row keep their defaults; names the model does not know are ignored.
func Load(m *model.Model, row map[string]any) *Record {
	r := &Record{
		model:     m,
		values:    make(map[string]any),
		changed:   make(map[string]bool),
		persisted: true,
	}
	for _, col := range m.Columns() {
		v, ok := row[col.Name]
		if !ok {
			v = col.Default
		}
		r.values[col.Name] = col.Type.Cast(v)
	}
	return r
}

// Model returns the record's model.
func (r *Record) Model() *model.Model { return r.model }

// Get returns the current value of name.
func (r *Record) Get(name string) (any, error) {
	if _, ok := r.model.Column(name); !ok {
		return nil, &UnknownAttributeError{Model: r.model.Name(), Name: name}
	}
	return r.values[name], nil
}

// Set casts v through the column type and stores it.
func (r *Record) Set(name string, v any) error {
	col, ok := r.model.Column(name)
	if !ok {
		return &UnknownAttributeError{Model: r.model.Name(), Name: name}
	}
	r.values[name] = col.Type.Cast(v)
	r.changed[name] = true
	return nil
}

// Attributes returns a copy of all values.
func (r *Record) Attributes() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Serialized returns the values in their storage form, for the stored
// columns only. Virtual attributes are left out.
func (r *Record) Serialized() (map[string]any, error) {
	out := make(map[string]any)
	for _, col := range r.model.Columns() {
		if col.Virtual {
			continue
		}
		v, err := col.Type.Serialize(r.values[col.Name])
		if err != nil {
			return nil, fmt.Errorf("serialize %s.%s: %w", r.model.Name(), col.Name, err)
		}
		out[col.Name] = v
	}
	return out, nil
}

// Changed lists the attributes assigned since the record was built or
// last marked persisted, sorted by name.
func (r *Record) Changed() []string {
	names := make([]string, 0, len(r.changed))
	for name := range r.changed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Persisted reports whether the record came from or was written to storage.
func (r *Record) Persisted() bool { return r.persisted }

// MarkPersisted clears the change set after a successful write.
func (r *Record) MarkPersisted() {
	r.persisted = true
	r.changed = make(map[string]bool)
}
