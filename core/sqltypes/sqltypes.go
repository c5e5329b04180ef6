// Package sqltypes builds the type map shared by all database adapters.
//
// The base map recognises the common SQL spellings by pattern, plus the
// plain type names used in attribute declarations ("string(50)",
// "decimal(10,2)"). Adapters layer their own bindings on top.
package sqltypes

import (
	"github.com/artpar/typemap/core/typemap"
	"github.com/artpar/typemap/core/types"
)

// Map is a type map from descriptors to handlers.
type Map = typemap.Fuzzy[types.Handler]

// New returns a map with the base bindings registered.
func New(opts ...typemap.Option) *Map {
	m := typemap.NewFuzzy[types.Handler](types.Unknown, opts...)
	RegisterBase(m)
	return m
}

// RegisterBase adds the adapter-independent bindings. Later patterns win,
// so "datetime" resolves through /datetime/ rather than /date/ or /time/.
func RegisterBase(m *Map) {
	Must(m.Register(typemap.MustCompile(`(?i)boolean`), types.Boolean{}))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)char`), stringType))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)binary|blob`), limited(func(o types.Options) types.Handler { return types.Binary{Options: o} })))
	Must(m.Register(typemap.MustCompile(`(?i)text|clob`), types.Text{}))
	Must(m.Register(typemap.MustCompile(`(?i)date`), types.Date{}))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)time`), precise(func(o types.Options) types.Handler { return types.Time{Options: o} })))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)datetime|timestamp`), precise(func(o types.Options) types.Handler { return types.DateTime{Options: o} })))
	Must(m.Register(typemap.MustCompile(`(?i)float|double|real`), types.Float{}))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)int`), limited(func(o types.Options) types.Handler { return types.Integer{Options: o} })))
	Must(m.RegisterFunc(typemap.MustCompile(`(?i)decimal|numeric`), decimalType))
	Must(m.Register(typemap.MustCompile(`(?i)json`), types.JSON{}))
	Must(m.Register(typemap.MustCompile(`(?i)uuid`), types.UUID{}))

	Must(m.Alias(typemap.MustCompile(`(?i)number`), "decimal"))

	// Declaration names. Registered last so they win over the patterns.
	Must(m.RegisterFunc(typemap.Name("string"), stringType))
	Must(m.Register(typemap.Name("text"), types.Text{}))
	Must(m.RegisterFunc(typemap.Name("integer"), limited(func(o types.Options) types.Handler { return types.Integer{Options: o} })))
	Must(m.Register(typemap.Name("float"), types.Float{}))
	Must(m.RegisterFunc(typemap.Name("decimal"), decimalType))
	Must(m.Register(typemap.Name("boolean"), types.Boolean{}))
	Must(m.Register(typemap.Name("date"), types.Date{}))
	Must(m.RegisterFunc(typemap.Name("time"), precise(func(o types.Options) types.Handler { return types.Time{Options: o} })))
	Must(m.RegisterFunc(typemap.Name("datetime"), precise(func(o types.Options) types.Handler { return types.DateTime{Options: o} })))
	Must(m.RegisterFunc(typemap.Name("binary"), limited(func(o types.Options) types.Handler { return types.Binary{Options: o} })))
	Must(m.Register(typemap.Name("json"), types.JSON{}))
	Must(m.Register(typemap.Name("uuid"), types.UUID{}))
	Must(m.Register(typemap.Name("secret"), types.Secret{}))
	Must(m.Register(typemap.Name("value"), types.Value{}))
}

// Must panics if a registration failed. The bindings registered here are
// fixed in code, so an error is a programming mistake.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}

// stringType resolves "varchar(20)". A limit may also be passed as the
// first lookup argument when the descriptor has none.
func stringType(descriptor string, args ...any) types.Handler {
	limit := typemap.ExtractLimit(descriptor)
	if limit == 0 {
		limit = intArg(args)
	}
	return types.NewString(limit)
}

func decimalType(descriptor string, _ ...any) types.Handler {
	return types.Decimal{Options: types.Options{
		Precision: typemap.ExtractPrecision(descriptor),
		Scale:     typemap.ExtractScale(descriptor),
	}}
}

// limited builds a handler carrying the descriptor's limit.
func limited(build func(types.Options) types.Handler) typemap.Resolver[string, types.Handler] {
	return func(descriptor string, args ...any) types.Handler {
		limit := typemap.ExtractLimit(descriptor)
		if limit == 0 {
			limit = intArg(args)
		}
		return build(types.Options{Limit: limit})
	}
}

// precise builds a handler carrying the descriptor's fractional precision.
func precise(build func(types.Options) types.Handler) typemap.Resolver[string, types.Handler] {
	return func(descriptor string, _ ...any) types.Handler {
		return build(types.Options{Precision: typemap.ExtractPrecision(descriptor)})
	}
}

func intArg(args []any) int {
	if len(args) == 0 {
		return 0
	}
	switch n := args[0].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case int32:
		return int(n)
	}
	return 0
}
