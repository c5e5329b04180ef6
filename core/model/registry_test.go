package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/types"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.models == nil {
		t.Error("models map not initialized")
	}
	if r.tables == nil {
		t.Error("tables map not initialized")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	m := New("user")

	if err := r.Register(m); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Get("user")
	if !ok || got != m {
		t.Errorf("Get(user) = %v, %v", got, ok)
	}

	if err := r.Register(m.Subclass("admin")); err != nil {
		t.Errorf("Register(subclass) error = %v", err)
	}
}

func TestRegistry_Register_DuplicateName(t *testing.T) {
	r := NewRegistry()
	r.Register(New("user"))

	err := r.Register(New("user", WithTable("people")))
	if !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("Register() error = %v, want ErrDuplicateModel", err)
	}
}

func TestRegistry_Register_TableConflict(t *testing.T) {
	r := NewRegistry()
	r.Register(New("user"))

	err := r.Register(New("account", WithTable("users")))

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Register() error = %v, want ConflictError", err)
	}
	if conflict.Table != "users" || conflict.Existing != "user" || conflict.Model != "account" {
		t.Errorf("ConflictError = %+v", conflict)
	}
}

func TestRegistry_Register_UnregisteredParent(t *testing.T) {
	r := NewRegistry()
	parent := New("user")

	err := r.Register(parent.Subclass("admin"))
	if !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Register() error = %v, want ErrUnknownModel", err)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	user := New("user")
	r.Register(user)
	r.Register(user.Subclass("admin"))

	if err := r.Unregister("user"); err == nil || !strings.Contains(err.Error(), "subclass") {
		t.Errorf("Unregister(user) error = %v, want subclass error", err)
	}

	if err := r.Unregister("admin"); err != nil {
		t.Fatalf("Unregister(admin) error = %v", err)
	}
	if err := r.Unregister("user"); err != nil {
		t.Fatalf("Unregister(user) error = %v", err)
	}

	if err := r.Register(New("account", WithTable("users"))); err != nil {
		t.Errorf("table should be free after Unregister: %v", err)
	}
}

func TestRegistry_Unregister_NotFound(t *testing.T) {
	r := NewRegistry()

	if err := r.Unregister("nonexistent"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Unregister() error = %v, want ErrUnknownModel", err)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	r.Register(New("user"))

	if _, err := r.Lookup("user"); err != nil {
		t.Errorf("Lookup(user) error = %v", err)
	}
	if _, err := r.Lookup("ghost"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Lookup(ghost) error = %v, want ErrUnknownModel", err)
	}
}

func TestRegistry_ListAndRoots(t *testing.T) {
	r := NewRegistry()
	zeta := New("zeta")
	r.Register(zeta)
	r.Register(New("alpha"))
	r.Register(zeta.Subclass("beta"))

	var names []string
	for _, m := range r.List() {
		names = append(names, m.Name())
	}
	if strings.Join(names, ",") != "alpha,beta,zeta" {
		t.Errorf("List() = %v, want sorted names", names)
	}

	if roots := r.Roots(); len(roots) != 2 {
		t.Errorf("Roots() len = %d, want 2", len(roots))
	}
}

func parseDefs(t *testing.T, docs ...string) []schema.Definition {
	t.Helper()
	var defs []schema.Definition
	for _, doc := range docs {
		def, err := schema.Parse([]byte(doc))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		defs = append(defs, def)
	}
	return defs
}

const overloadedDef = `
model: overloaded_type
columns:
  - { name: id, type: integer }
  - { name: overloaded_float, type: float }
  - { name: unoverloaded_float, type: float }
  - { name: overloaded_string_with_limit, type: "varchar(255)" }
  - { name: string_with_default, type: "varchar(255)", default: the original default }
attributes:
  - { name: overloaded_float, type: integer }
  - { name: overloaded_string_with_limit, type: "string(50)" }
  - { name: non_existent_decimal, type: decimal }
  - { name: string_with_default, type: string, default: the overloaded default }
`

const grandchildDef = `
model: grandchild_of_overloaded_type
extends: child_of_overloaded_type
attributes:
  - { name: overloaded_float, type: float }
`

const childDef = `
model: child_of_overloaded_type
extends: overloaded_type
`

func TestRegistry_Apply(t *testing.T) {
	r := NewRegistry()
	tm := sqltypes.New()

	// Children listed before parents on purpose.
	applied, err := r.Apply(parseDefs(t, grandchildDef, childDef, overloadedDef), tm)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(applied) != 3 || applied[0].Name() != "overloaded_type" {
		t.Fatalf("Apply() applied %d models, first %q", len(applied), applied[0].Name())
	}

	root, _ := r.Get("overloaded_type")
	if root.Table() != "overloaded_types" || !root.SchemaLoaded() {
		t.Errorf("root table = %q, loaded = %v", root.Table(), root.SchemaLoaded())
	}

	want := "id overloaded_float unoverloaded_float overloaded_string_with_limit string_with_default non_existent_decimal"
	if got := strings.Join(root.ColumnNames(), " "); got != want {
		t.Errorf("ColumnNames() = %s, want %s", got, want)
	}

	col, _ := root.Column("overloaded_string_with_limit")
	if col.Limit != 50 {
		t.Errorf("limit = %d, want 50", col.Limit)
	}
	if got := root.ColumnDefaults()["string_with_default"]; got != "the overloaded default" {
		t.Errorf("default = %v", got)
	}

	child, _ := r.Get("child_of_overloaded_type")
	grandchild, _ := r.Get("grandchild_of_overloaded_type")
	if got := child.ColumnTypes()["overloaded_float"]; got != (types.Integer{}) {
		t.Errorf("child overloaded_float = %#v, want Integer", got)
	}
	if got := grandchild.ColumnTypes()["overloaded_float"]; got != (types.Float{}) {
		t.Errorf("grandchild overloaded_float = %#v, want Float", got)
	}
	if grandchild.Parent() != child || child.Parent() != root {
		t.Error("hierarchy not wired")
	}
}

func TestRegistry_Apply_Upsert(t *testing.T) {
	r := NewRegistry()
	tm := sqltypes.New()

	if _, err := r.Apply(parseDefs(t, overloadedDef, childDef), tm); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	child, _ := r.Get("child_of_overloaded_type")
	child.Columns()

	update := `
model: child_of_overloaded_type
extends: overloaded_type
attributes:
  - { name: unoverloaded_float, type: "decimal(8,2)" }
`
	if _, err := r.Apply(parseDefs(t, update), tm); err != nil {
		t.Fatalf("Apply(update) error = %v", err)
	}

	again, _ := r.Get("child_of_overloaded_type")
	if again != child {
		t.Error("re-applying should keep the model instance")
	}
	col, _ := child.Column("unoverloaded_float")
	if col.Type != (types.Decimal{Options: types.Options{Precision: 8, Scale: 2}}) || col.Scale != 2 {
		t.Errorf("unoverloaded_float = %+v", col)
	}

	moved := `
model: child_of_overloaded_type
extends: somewhere_else
`
	if _, err := r.Apply(parseDefs(t, moved), tm); err == nil {
		t.Error("changing the parent should fail")
	}
}

func TestRegistry_Apply_Atomic(t *testing.T) {
	r := NewRegistry()
	tm := sqltypes.New()

	bad := `
model: broken
extends: overloaded_type
attributes:
  - { name: shape, type: geometry }
`
	_, err := r.Apply(parseDefs(t, overloadedDef, bad), tm)
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("Apply() error = %v, want unknown type", err)
	}
	if len(r.List()) != 0 {
		t.Errorf("registry changed by a failed Apply: %d models", len(r.List()))
	}

	orphan := "model: orphan\nextends: nobody"
	if _, err := r.Apply(parseDefs(t, orphan), tm); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Apply(orphan) error = %v, want ErrUnknownModel", err)
	}

	clash := "model: other\ntable: overloaded_types"
	_, err = r.Apply(parseDefs(t, overloadedDef, clash), tm)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("Apply(clash) error = %v, want ConflictError", err)
	}
}

func TestRegistry_Reload(t *testing.T) {
	src := overloadedTypesSource()
	r := NewRegistry()

	root := New("overloaded_type", WithSource(src), WithTypes(sqltypes.New()))
	child := root.Subclass("child_type")
	static := New("static_type")
	for _, m := range []*Model{root, child, static} {
		if err := r.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name(), err)
		}
	}

	got, err := r.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(got) != 1 || got[0] != "overloaded_type" {
		t.Errorf("Reload() = %v, want [overloaded_type]", got)
	}
	if len(root.ColumnNames()) != 5 {
		t.Errorf("ColumnNames() = %v, want 5 columns", root.ColumnNames())
	}

	src.Set("overloaded_types", overloadedColumns()[:2])
	got, err = r.Reload(context.Background(), "child_type", "overloaded_type")
	if err != nil {
		t.Fatalf("Reload(child) error = %v", err)
	}
	if len(got) != 1 || got[0] != "overloaded_type" {
		t.Errorf("Reload(child) = %v, want the root once", got)
	}
	if len(child.ColumnNames()) != 2 {
		t.Errorf("child ColumnNames() = %v, want 2 columns", child.ColumnNames())
	}

	if _, err := r.Reload(context.Background(), "ghost"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Reload(ghost) error = %v, want ErrUnknownModel", err)
	}
	if _, err := r.Reload(context.Background(), "static_type"); err == nil {
		t.Error("Reload() of a model without a source should fail")
	}
}
