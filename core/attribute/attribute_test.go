package attribute

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/artpar/typemap/core/types"
)

func TestTable_DeclareAndResolve(t *testing.T) {
	tbl := New()

	if err := tbl.Declare("overloaded_float", types.Integer{}); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}
	if err := tbl.Declare("string_with_default", types.String{}, WithDefault("the overloaded default")); err != nil {
		t.Fatalf("Declare() error = %v", err)
	}

	o, ok := tbl.Resolve("overloaded_float")
	if !ok {
		t.Fatal("Resolve(overloaded_float) not found")
	}
	if o.Type != (types.Integer{}) || o.HasDefault {
		t.Errorf("Resolve(overloaded_float) = %+v", o)
	}

	o, ok = tbl.Resolve("string_with_default")
	if !ok || !o.HasDefault || o.Default != "the overloaded default" {
		t.Errorf("Resolve(string_with_default) = %+v, %v", o, ok)
	}

	if _, ok := tbl.Resolve("missing"); ok {
		t.Error("Resolve(missing) should not be found")
	}
}

func TestTable_DeclareEmptyName(t *testing.T) {
	tbl := New()

	if err := tbl.Declare("", types.String{}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Declare(\"\") error = %v, want ErrEmptyName", err)
	}
	if len(tbl.Local()) != 0 {
		t.Error("failed declaration must not be stored")
	}
}

func TestTable_NilDefaultIsADefault(t *testing.T) {
	tbl := New()
	tbl.Declare("nullable", types.String{}, WithDefault(nil))

	o, _ := tbl.Resolve("nullable")
	if !o.HasDefault || o.Default != nil {
		t.Errorf("Resolve(nullable) = %+v, want nil default present", o)
	}
}

func TestTable_InheritanceDoesNotTouchParent(t *testing.T) {
	parent := New()
	parent.Declare("foo", types.String{})

	child := parent.Inherit()
	child.Declare("bar", types.Integer{})
	child.Declare("foo", types.Float{})

	if o, _ := child.Resolve("foo"); o.Type != (types.Float{}) {
		t.Errorf("child foo = %#v, want Float", o.Type)
	}
	if o, _ := parent.Resolve("foo"); o.Type != (types.String{}) {
		t.Errorf("parent foo = %#v, want String", o.Type)
	}
	if _, ok := parent.Resolve("bar"); ok {
		t.Error("parent must not see child declarations")
	}
	if child.Parent() != parent {
		t.Error("Parent() should return the inherited table")
	}
}

func TestTable_LaterParentDeclarationsAreVisible(t *testing.T) {
	parent := New()
	child := parent.Inherit()

	parent.Declare("late", types.Boolean{})

	if o, ok := child.Resolve("late"); !ok || o.Type != (types.Boolean{}) {
		t.Errorf("child Resolve(late) = %+v, %v", o, ok)
	}
}

func TestTable_Declarations(t *testing.T) {
	grand := New()
	grand.Declare("a", types.String{})
	grand.Declare("b", types.String{})

	parent := grand.Inherit()
	parent.Declare("c", types.Integer{})

	child := parent.Inherit()
	child.Declare("d", types.Integer{})
	child.Declare("a", types.Text{})

	got := child.Declarations()
	wantNames := []string{"a", "b", "c", "d"}
	if len(got) != len(wantNames) {
		t.Fatalf("Declarations() = %v, want names %v", got, wantNames)
	}
	for i, name := range wantNames {
		if got[i].Name != name {
			t.Errorf("Declarations()[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
	if got[0].Type != (types.Text{}) {
		t.Errorf("re-declared a = %#v, want Text", got[0].Type)
	}

	if n := len(grand.Declarations()); n != 2 {
		t.Errorf("grand Declarations() len = %d, want 2", n)
	}
}

func TestTable_Version(t *testing.T) {
	parent := New()
	child := parent.Inherit()

	v0 := child.Version()
	child.Declare("x", types.String{})
	v1 := child.Version()
	if v1 <= v0 {
		t.Errorf("Version() after local declare = %d, want > %d", v1, v0)
	}

	parent.Declare("y", types.String{})
	v2 := child.Version()
	if v2 <= v1 {
		t.Errorf("Version() after parent declare = %d, want > %d", v2, v1)
	}

	sibling := parent.Inherit()
	before := sibling.Version()
	child.Declare("z", types.String{})
	if sibling.Version() != before {
		t.Error("sibling declarations must not change the version")
	}
}

func TestTable_ConcurrentAccess(t *testing.T) {
	parent := New()
	child := parent.Inherit()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				parent.Declare(fmt.Sprintf("p%d_%d", i, j), types.String{})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				child.Resolve("p0_0")
				child.Declarations()
				child.Version()
			}
		}()
	}
	wg.Wait()

	if n := len(child.Declarations()); n != 400 {
		t.Errorf("Declarations() len = %d, want 400", n)
	}
}
