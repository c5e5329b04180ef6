package typemap

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/artpar/typemap/core/types"
)

func newHandlerMap(opts ...Option) *Fuzzy[types.Handler] {
	return NewFuzzy[types.Handler](types.Unknown, opts...)
}

func TestFuzzy_DefaultType(t *testing.T) {
	m := newHandlerMap()

	got := m.Lookup("undefined")
	if !types.IsUnknown(got) {
		t.Errorf("Lookup(undefined) = %#v, want unknown handler", got)
	}
}

func TestFuzzy_RegisteringTypes(t *testing.T) {
	m := newHandlerMap()

	if err := m.Register(MustCompile(`(?i)boolean`), types.Boolean{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := m.Lookup("boolean"); got != (types.Boolean{}) {
		t.Errorf("Lookup(boolean) = %#v, want Boolean", got)
	}
}

func TestFuzzy_OverridingRegisteredTypes(t *testing.T) {
	m := newHandlerMap()

	m.Register(MustCompile(`(?i)time`), types.Time{})
	m.Register(MustCompile(`(?i)time`), types.DateTime{})

	if got := m.Lookup("time"); got != (types.DateTime{}) {
		t.Errorf("Lookup(time) = %#v, want DateTime", got)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after replacing an equal pattern", m.Len())
	}
}

func TestFuzzy_FuzzyLookup(t *testing.T) {
	m := newHandlerMap()

	m.Register(MustCompile(`(?i)varchar`), types.String{})

	if got := m.Lookup("varchar(20)"); got != (types.String{}) {
		t.Errorf("Lookup(varchar(20)) = %#v, want String", got)
	}
}

func TestFuzzy_AliasingTypes(t *testing.T) {
	m := newHandlerMap()

	m.Register(MustCompile(`(?i)string`), types.String{})
	if err := m.Alias(MustCompile(`(?i)varchar`), "string"); err != nil {
		t.Fatalf("Alias() error = %v", err)
	}

	if got := m.Lookup("varchar"); got != (types.String{}) {
		t.Errorf("Lookup(varchar) = %#v, want String", got)
	}
}

func TestFuzzy_ChangingTypeChangesAliases(t *testing.T) {
	m := newHandlerMap()

	m.Register(MustCompile(`(?i)timestamp`), types.Time{})
	m.Alias(MustCompile(`(?i)datetime`), "timestamp")
	m.Register(MustCompile(`(?i)timestamp`), types.DateTime{})

	if got := m.Lookup("datetime"); got != (types.DateTime{}) {
		t.Errorf("Lookup(datetime) = %#v, want DateTime", got)
	}
}

func TestFuzzy_AliasesKeepMetadata(t *testing.T) {
	m := NewFuzzy("")

	m.RegisterFunc(MustCompile(`(?i)decimal`), func(d string, _ ...any) string { return d })
	m.Alias(MustCompile(`(?i)number`), "decimal")

	if got := m.Lookup("number(20)"); got != "decimal(20)" {
		t.Errorf("Lookup(number(20)) = %q, want decimal(20)", got)
	}
	if got := m.Lookup("number"); got != "decimal" {
		t.Errorf("Lookup(number) = %q, want decimal", got)
	}
}

func TestFuzzy_RegisterFunc(t *testing.T) {
	m := newHandlerMap()

	m.RegisterFunc(MustCompile(`(?i)varchar`), func(d string, _ ...any) types.Handler {
		if Metadata(d) != "" {
			return types.String{}
		}
		return types.Binary{}
	})

	if got := m.Lookup("varchar(20)"); got != (types.String{}) {
		t.Errorf("Lookup(varchar(20)) = %#v, want String", got)
	}
	if got := m.Lookup("varchar"); got != (types.Binary{}) {
		t.Errorf("Lookup(varchar) = %#v, want Binary", got)
	}
}

func TestFuzzy_AdditionalLookupArgs(t *testing.T) {
	m := NewFuzzy("")

	m.RegisterFunc(MustCompile(`(?i)varchar`), func(_ string, args ...any) string {
		if limit, _ := args[0].(int); limit > 255 {
			return "text"
		}
		return "string"
	})
	m.Alias(MustCompile(`(?i)string`), "varchar")

	if got := m.Lookup("varchar", 200); got != "string" {
		t.Errorf("Lookup(varchar, 200) = %q, want string", got)
	}
	if got := m.Lookup("varchar", 400); got != "text" {
		t.Errorf("Lookup(varchar, 400) = %q, want text", got)
	}
	if got := m.Lookup("string", 400); got != "text" {
		t.Errorf("Lookup(string, 400) = %q, want text", got)
	}
}

func TestFuzzy_RequiresValueOrResolver(t *testing.T) {
	m := newHandlerMap()

	err := m.Register(MustCompile(`(?i)only key`), nil)
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Register(nil) error = %v, want ErrInvalidRegistration", err)
	}

	err = m.RegisterFunc(MustCompile(`(?i)only key`), nil)
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("RegisterFunc(nil) error = %v, want ErrInvalidRegistration", err)
	}

	err = m.Alias(Name("x"), "")
	if !errors.Is(err, ErrInvalidRegistration) {
		t.Errorf("Alias(empty) error = %v, want ErrInvalidRegistration", err)
	}

	if m.Len() != 0 {
		t.Errorf("Len() = %d, failed registrations must not be stored", m.Len())
	}
}

func TestFuzzy_MostRecentRegistrationWins(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(MustCompile(`(?i)char`), "char")
	m.Register(MustCompile(`(?i)varchar`), "varchar")

	if got := m.Lookup("varchar(10)"); got != "varchar" {
		t.Errorf("Lookup(varchar(10)) = %q, want varchar", got)
	}
	if got := m.Lookup("char(10)"); got != "char" {
		t.Errorf("Lookup(char(10)) = %q, want char", got)
	}
}

func TestFuzzy_ReplaceKeepsPosition(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(MustCompile(`(?i)char`), "first")
	m.Register(MustCompile(`(?i)varchar`), "second")
	m.Register(MustCompile(`(?i)char`), "replaced")

	if got := m.Lookup("varchar"); got != "second" {
		t.Errorf("Lookup(varchar) = %q, want second (later pattern keeps precedence)", got)
	}
	if got := m.Lookup("char"); got != "replaced" {
		t.Errorf("Lookup(char) = %q, want replaced", got)
	}

	want := []Entry{{Pattern: "/(?i)char/"}, {Pattern: "/(?i)varchar/"}}
	got := m.Entries()
	if len(got) != len(want) {
		t.Fatalf("Entries() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFuzzy_ReplaceAsNewest(t *testing.T) {
	m := NewFuzzy("unknown", WithReplacePolicy(ReplaceAsNewest))

	m.Register(MustCompile(`(?i)char`), "first")
	m.Register(MustCompile(`(?i)varchar`), "second")
	m.Register(MustCompile(`(?i)char`), "replaced")

	if got := m.Lookup("varchar"); got != "replaced" {
		t.Errorf("Lookup(varchar) = %q, want replaced", got)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
}

func TestFuzzy_AliasToNamedKey(t *testing.T) {
	m := newHandlerMap()

	m.Register(MustCompile(`(?i)varchar`), types.String{})
	m.Register(Name("string"), types.Decimal{})
	m.Alias(MustCompile(`(?i)number`), "string")

	if got := m.Lookup("varchar(20)"); got != (types.String{}) {
		t.Errorf("Lookup(varchar(20)) = %#v, want String", got)
	}
	if got := m.Lookup("number(5)"); got != (types.Decimal{}) {
		t.Errorf("Lookup(number(5)) = %#v, want Decimal", got)
	}
}

func TestFuzzy_AliasChains(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(Name("int4"), "integer")
	m.Alias(Name("integer"), "int4")
	m.Alias(Name("int"), "integer")

	if got := m.Lookup("int"); got != "integer" {
		t.Errorf("Lookup(int) = %q, want integer", got)
	}

	m.Register(Name("int4"), "bigint")
	if got := m.Lookup("int"); got != "bigint" {
		t.Errorf("Lookup(int) after re-register = %q, want bigint", got)
	}
}

func TestFuzzy_AliasCycleResolvesToFallback(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Alias(Name("a"), "b")
	m.Alias(Name("b"), "a")

	if got := m.Lookup("a"); got != "unknown" {
		t.Errorf("Lookup(a) = %q, want unknown", got)
	}
}

func TestFuzzy_AliasMissFallsBackToOlderEntries(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(MustCompile(`(?i)num`), "numeric")
	m.Alias(MustCompile(`(?i)number`), "missing")

	if got := m.Lookup("number"); got != "numeric" {
		t.Errorf("Lookup(number) = %q, want numeric", got)
	}
}

func TestFuzzy_OverlappingAliasesTerminate(t *testing.T) {
	m := NewFuzzy("unknown")

	// Both aliases match their shared target, so every hop can branch.
	m.Alias(MustCompile("a"), "ab")
	m.Alias(MustCompile("b"), "ab")
	for i := 0; i < 8; i++ {
		m.Alias(MustCompile(fmt.Sprintf("x|%d", i)), "x")
	}

	done := make(chan [2]string, 1)
	go func() {
		done <- [2]string{m.Lookup("ab"), m.Lookup("x")}
	}()

	select {
	case got := <-done:
		if got[0] != "unknown" || got[1] != "unknown" {
			t.Errorf("Lookup() = %q, want unknown for both", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Lookup() did not return for overlapping aliases")
	}
}

func TestFuzzy_MutuallyMatchingAliasesReachOlderBinding(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(Name("integer"), "integer")
	m.Alias(MustCompile(`(?i)int`), "integer")
	m.Alias(MustCompile(`(?i)integer`), "int")

	for _, d := range []string{"int(8)", "integer", "INT"} {
		if got := m.Lookup(d); got != "integer" {
			t.Errorf("Lookup(%q) = %q, want integer", d, got)
		}
	}
}

func TestFuzzy_MemoIsBounded(t *testing.T) {
	m := NewFuzzy("unknown")
	m.Register(MustCompile(`(?i)^int`), "integer")

	for i := 0; i < 2*memoLimit; i++ {
		d := fmt.Sprintf("int%d", i)
		if got := m.Lookup(d); got != "integer" {
			t.Fatalf("Lookup(%q) = %q, want integer", d, got)
		}
	}

	snap := m.snap.Load()
	stored := 0
	snap.memo.Range(func(_, _ any) bool {
		stored++
		return true
	})
	if stored > memoLimit || snap.memoSize.Load() > memoLimit {
		t.Errorf("memo holds %d descriptors (counter %d), limit %d", stored, snap.memoSize.Load(), memoLimit)
	}

	// Descriptors past the limit still resolve.
	if got := m.Lookup(fmt.Sprintf("int%d", 3*memoLimit)); got != "integer" {
		t.Errorf("Lookup() past the memo limit = %q, want integer", got)
	}
}

func TestFuzzy_MemoIsDroppedOnWrite(t *testing.T) {
	m := NewFuzzy("unknown")

	m.Register(Name("text"), "v1")
	if got := m.Lookup("text"); got != "v1" {
		t.Fatalf("Lookup(text) = %q, want v1", got)
	}

	m.Register(Name("text"), "v2")
	if got := m.Lookup("text"); got != "v2" {
		t.Errorf("Lookup(text) = %q, want v2 after re-register", got)
	}
}

type countingObserver struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (o *countingObserver) ObserveLookup(_ string, hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func TestFuzzy_Observer(t *testing.T) {
	obs := &countingObserver{}
	m := NewFuzzy("unknown", WithObserver(obs))

	m.Register(Name("integer"), "int")
	m.Lookup("integer")
	m.Lookup("integer")
	m.Lookup("geometry")

	if obs.hits != 2 || obs.misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", obs.hits, obs.misses)
	}
}

func TestFuzzy_ConcurrentLookupAndRegister(t *testing.T) {
	m := newHandlerMap()
	m.Register(MustCompile(`(?i)char`), types.String{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := m.Lookup("varchar(10)"); got == nil {
					t.Error("Lookup() returned nil")
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		m.Register(MustCompile(fmt.Sprintf(`(?i)type%d`, i)), types.Integer{})
	}
	wg.Wait()

	if m.Len() != 51 {
		t.Errorf("Len() = %d, want 51", m.Len())
	}
}
