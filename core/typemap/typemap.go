// Package typemap resolves raw type descriptors to values through an ordered
// set of pattern bindings and aliases.
//
// Two strategies share the same rules:
//
//   - Fuzzy matches string descriptors against patterns (names or regular
//     expressions), so "varchar(20)" can hit a binding for varchar.
//   - Exact compares comparable keys for strict equality.
//
// Later registrations win over earlier ones when several patterns match.
// Registering a pattern equal to an existing one replaces that binding in
// place, keeping its precedence relative to the others. Aliases are
// redirects: they resolve through whatever the canonical key is bound to at
// lookup time.
//
// Lookups never fail. A descriptor nothing matches resolves to the fallback
// value given at construction.
//
// Both maps publish immutable snapshots on every write, so lookups take no
// locks and resolvers may call back into the map.
package typemap

import (
	"errors"
	"reflect"
)

// MaxAliasDepth bounds alias chains. A longer chain is treated as a cycle
// and resolves to the fallback value.
const MaxAliasDepth = 32

// ErrInvalidRegistration is returned when a binding has neither a usable
// value nor a resolver.
var ErrInvalidRegistration = errors.New("registration requires a value or a resolver")

// Resolver computes a result from the matched descriptor and the extra
// arguments passed to Lookup.
type Resolver[D any, R any] func(descriptor D, args ...any) R

// ReplacePolicy decides where a re-registered pattern lands.
type ReplacePolicy int

const (
	// ReplaceInPlace keeps the original position of the pattern.
	ReplaceInPlace ReplacePolicy = iota

	// ReplaceAsNewest moves the pattern to the highest precedence.
	ReplaceAsNewest
)

// Observer receives one notification per top-level lookup.
type Observer interface {
	ObserveLookup(strategy string, hit bool)
}

// Option configures a map.
type Option func(*options)

type options struct {
	policy   ReplacePolicy
	observer Observer
}

// WithReplacePolicy sets the tie-break used when an equal pattern is
// registered again.
func WithReplacePolicy(p ReplacePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithObserver reports lookups to o.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Entry describes one binding for introspection.
type Entry struct {
	Pattern string `json:"pattern"`
	// Target is the canonical key for aliases, empty otherwise.
	Target string `json:"target,omitempty"`
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
