// Package types provides the handlers that cast, serialize, and default
// attribute values. Handlers are immutable, comparable values: two handlers
// are the same type when they compare equal with ==.
package types

import "reflect"

// Kind names the family a handler belongs to.
type Kind string

const (
	KindValue    Kind = "value"
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindInteger  Kind = "integer"
	KindFloat    Kind = "float"
	KindDecimal  Kind = "decimal"
	KindBoolean  Kind = "boolean"
	KindDate     Kind = "date"
	KindTime     Kind = "time"
	KindDateTime Kind = "datetime"
	KindBinary   Kind = "binary"
	KindJSON     Kind = "json"
	KindUUID     Kind = "uuid"
	KindSecret   Kind = "secret"
)

// Handler casts values coming from user input or the database, and
// serializes them back for storage.
//
// Implementations must be comparable (no slices, maps, or funcs in the
// struct) so that registries and override tables can compare them.
type Handler interface {
	// Kind returns the handler family.
	Kind() Kind

	// Meta returns the size metadata (limit, precision, scale).
	Meta() Options

	// Cast converts an arbitrary input into the handler's Go representation.
	// Values that cannot be converted yield nil.
	Cast(v any) any

	// Serialize converts a value into its storage representation.
	Serialize(v any) (any, error)
}

// Options carries the size metadata reported by the schema.
// The zero value means "unspecified".
type Options struct {
	Limit     int `yaml:"limit,omitempty" json:"limit,omitempty"`
	Precision int `yaml:"precision,omitempty" json:"precision,omitempty"`
	Scale     int `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Meta returns the options themselves so that handlers embedding Options
// satisfy Handler.Meta.
func (o Options) Meta() Options { return o }

// Value is the generic handler. It passes values through untouched and is
// what registries return for descriptors they do not know.
type Value struct {
	Options
}

// Unknown is the sentinel handler for unregistered descriptors.
var Unknown Handler = Value{}

func (Value) Kind() Kind { return KindValue }

func (Value) Cast(v any) any { return v }

func (Value) Serialize(v any) (any, error) { return v, nil }

// IsUnknown reports whether h is nil or the generic pass-through handler.
func IsUnknown(h Handler) bool {
	return h == nil || h.Kind() == KindValue
}

// Equal reports whether two handlers are the same type with the same
// metadata. Handlers that are not comparable are never equal.
func Equal(a, b Handler) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
