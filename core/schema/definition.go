package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition declares a model and its attribute overrides.
type Definition struct {
	// Model is the model name (e.g., "overloaded_type").
	Model string `yaml:"model"`

	// Extends names the parent model. Empty for root models.
	Extends string `yaml:"extends,omitempty"`

	// Table overrides the conventional table name. Subclasses share the
	// root's table and may not set it.
	Table string `yaml:"table,omitempty"`

	// PrimaryKey defaults to "id".
	PrimaryKey string `yaml:"primary_key,omitempty"`

	// Attributes are declared in order.
	Attributes []AttributeDef `yaml:"attributes,omitempty"`

	// Columns describe the table when no database is configured.
	Columns []RawColumn `yaml:"columns,omitempty"`

	// Description for documentation.
	Description string `yaml:"description,omitempty"`
}

// AttributeDef is one attribute declaration.
type AttributeDef struct {
	Name string `yaml:"name"`

	// Type is a type descriptor such as "string(50)". Empty keeps the
	// schema's type and only overrides the default.
	Type string `yaml:"type,omitempty"`

	Default any `yaml:"default,omitempty"`

	// HasDefault is set when the default key is present, even if null.
	HasDefault bool `yaml:"-"`
}

// UnmarshalYAML records whether a default key was present.
func (a *AttributeDef) UnmarshalYAML(value *yaml.Node) error {
	type plain AttributeDef
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = AttributeDef(p)

	if value.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(value.Content); i += 2 {
			if value.Content[i].Value == "default" {
				a.HasDefault = true
			}
		}
	}
	return nil
}

// IsRoot reports whether the definition has no parent.
func (d Definition) IsRoot() bool {
	return d.Extends == ""
}

// Attribute returns the declaration for name.
func (d Definition) Attribute(name string) (AttributeDef, bool) {
	for _, a := range d.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeDef{}, false
}

// SortDefinitions orders definitions so that every parent precedes its
// children. Parents outside defs are assumed to exist already.
func SortDefinitions(defs []Definition) ([]Definition, error) {
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if _, dup := byName[d.Model]; dup {
			return nil, fmt.Errorf("model %q defined twice", d.Model)
		}
		byName[d.Model] = d
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(defs))
	out := make([]Definition, 0, len(defs))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		d, ok := byName[name]
		if !ok {
			return nil
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("inheritance cycle: %v", append(path, name))
		}
		state[name] = visiting
		if d.Extends != "" {
			if err := visit(d.Extends, append(path, name)); err != nil {
				return err
			}
		}
		state[name] = done
		out = append(out, d)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Model, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}
