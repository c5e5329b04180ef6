/*
Package schema defines column descriptors, the schema source port, and
declarative model definitions.

# Columns

A Source reports the raw columns of a table in schema order:

	cols, err := src.Columns(ctx, "users")

RawColumn carries what the database says. Column is the effective
descriptor a model exposes after resolving the raw type through a type map
and applying attribute overrides.

# Model Definitions

Models can be declared in YAML:

	model: overloaded_type
	table: overloaded_types
	attributes:
	  - { name: overloaded_float, type: integer }
	  - { name: overloaded_string_with_limit, type: "string(255)" }
	  - { name: string_with_default, type: string, default: the overloaded default }
	  - { name: non_existent_decimal, type: decimal }

A definition may extend another model, inheriting its attribute overrides:

	model: child_with_overrides
	extends: overloaded_type
	attributes:
	  - { name: overloaded_float, type: float }

Definitions without a database can list their columns inline; these are
served by a StaticSource:

	columns:
	  - { name: id, type: integer, primary_key: true }
	  - { name: title, type: "varchar(255)", null: false }

# Parsing

	def, err := schema.ParseFile("models/user.yaml")
	defs, err := schema.ParseDir("models/")

All definitions are validated on parse.
*/
package schema
