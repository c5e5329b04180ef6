package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses a model definition from a YAML file.
func ParseFile(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a model definition from YAML bytes.
func Parse(data []byte) (Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(def); err != nil {
		return Definition{}, fmt.Errorf("validate model %q: %w", def.Model, err)
	}

	return def, nil
}

// ParseDir parses all model definitions from a directory, including subdirectories.
func ParseDir(dir string) ([]Definition, error) {
	var defs []Definition

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			defs = append(defs, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		def, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		defs = append(defs, def)
	}

	return defs, nil
}

// ParsePath parses a single file or a directory of definitions.
func ParsePath(path string) ([]Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ParseDir(path)
	}
	def, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return []Definition{def}, nil
}

// Validate validates a model definition.
func Validate(def Definition) error {
	var errs []string

	if def.Model == "" {
		errs = append(errs, "model name is required")
	} else if !isValidIdentifier(def.Model) {
		errs = append(errs, fmt.Sprintf("model name %q is not a valid identifier", def.Model))
	}

	if def.Extends != "" {
		if def.Extends == def.Model {
			errs = append(errs, "model cannot extend itself")
		}
		if def.Table != "" {
			errs = append(errs, "table can only be set on root models")
		}
		if len(def.Columns) > 0 {
			errs = append(errs, "columns can only be listed on root models")
		}
	}

	if def.Table != "" && !isValidIdentifier(def.Table) {
		errs = append(errs, fmt.Sprintf("table name %q is not a valid identifier", def.Table))
	}

	seen := make(map[string]bool)
	for _, attr := range def.Attributes {
		if err := validateAttribute(attr); err != nil {
			errs = append(errs, err.Error())
		}
		if seen[attr.Name] {
			errs = append(errs, fmt.Sprintf("attribute %q declared twice", attr.Name))
		}
		seen[attr.Name] = true
	}

	seen = make(map[string]bool)
	pks := 0
	for _, col := range def.Columns {
		if !isValidIdentifier(col.Name) {
			errs = append(errs, fmt.Sprintf("column name %q is not a valid identifier", col.Name))
		}
		if col.SQLType == "" {
			errs = append(errs, fmt.Sprintf("column %q: type is required", col.Name))
		}
		if seen[col.Name] {
			errs = append(errs, fmt.Sprintf("column %q listed twice", col.Name))
		}
		seen[col.Name] = true
		if col.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		errs = append(errs, "at most one column can be the primary key")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateAttribute validates a single attribute declaration.
func validateAttribute(attr AttributeDef) error {
	if !isValidIdentifier(attr.Name) {
		return fmt.Errorf("attribute name %q is not a valid identifier", attr.Name)
	}

	if attr.Type == "" && !attr.HasDefault {
		return fmt.Errorf("attribute %q: type or default is required", attr.Name)
	}

	if strings.Count(attr.Type, "(") != strings.Count(attr.Type, ")") {
		return fmt.Errorf("attribute %q: unbalanced parentheses in type %q", attr.Name, attr.Type)
	}

	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
