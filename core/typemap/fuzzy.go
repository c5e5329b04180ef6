package typemap

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Fuzzy resolves string descriptors by pattern.
type Fuzzy[R any] struct {
	mu       sync.Mutex // serializes writers
	snap     atomic.Pointer[fuzzySnapshot[R]]
	fallback R
	opts     options
}

type fuzzyEntry[R any] struct {
	pattern Pattern
	key     string
	resolve Resolver[string, R]
	target  string
	alias   bool
}

type fuzzySnapshot[R any] struct {
	entries []fuzzyEntry[R]
	aliases bool

	// memo caches argument-less lookups for this generation only. It holds
	// at most memoLimit descriptors; later ones are resolved every time.
	memo     sync.Map
	memoSize atomic.Int64
}

// memoLimit bounds the memo of one snapshot. Schemas use a few dozen
// distinct descriptors, so the limit is only reached by arbitrary input.
const memoLimit = 1024

func (s *fuzzySnapshot[R]) remember(descriptor string, r R) {
	if s.memoSize.Load() >= memoLimit {
		return
	}
	if _, loaded := s.memo.LoadOrStore(descriptor, r); !loaded {
		s.memoSize.Add(1)
	}
}

// NewFuzzy creates an empty map that resolves unknown descriptors to fallback.
func NewFuzzy[R any](fallback R, opts ...Option) *Fuzzy[R] {
	m := &Fuzzy[R]{
		fallback: fallback,
		opts:     buildOptions(opts),
	}
	m.snap.Store(&fuzzySnapshot[R]{})
	return m
}

// Register binds p to a fixed value.
func (m *Fuzzy[R]) Register(p Pattern, value R) error {
	if p == nil {
		return fmt.Errorf("register: nil pattern: %w", ErrInvalidRegistration)
	}
	if isNil(value) {
		return fmt.Errorf("register %s: %w", p, ErrInvalidRegistration)
	}
	m.put(fuzzyEntry[R]{
		pattern: p,
		resolve: func(string, ...any) R { return value },
	})
	return nil
}

// RegisterFunc binds p to a resolver called with the descriptor and the
// lookup's extra arguments.
func (m *Fuzzy[R]) RegisterFunc(p Pattern, fn Resolver[string, R]) error {
	if p == nil {
		return fmt.Errorf("register: nil pattern: %w", ErrInvalidRegistration)
	}
	if fn == nil {
		return fmt.Errorf("register %s: %w", p, ErrInvalidRegistration)
	}
	m.put(fuzzyEntry[R]{pattern: p, resolve: fn})
	return nil
}

// Alias redirects descriptors matching p to the canonical descriptor. The
// descriptor's parenthesised metadata is carried over, so with
// Alias(Name("number"), "decimal") a lookup of "number(20)" resolves
// "decimal(20)".
func (m *Fuzzy[R]) Alias(p Pattern, canonical string) error {
	if p == nil || strings.TrimSpace(canonical) == "" {
		return fmt.Errorf("alias %v: %w", p, ErrInvalidRegistration)
	}
	m.put(fuzzyEntry[R]{pattern: p, target: canonical, alias: true})
	return nil
}

func (m *Fuzzy[R]) put(e fuzzyEntry[R]) {
	e.key = patternKey(e.pattern)

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load().entries
	entries := make([]fuzzyEntry[R], 0, len(old)+1)
	replaced := false
	for _, cur := range old {
		if cur.key != e.key {
			entries = append(entries, cur)
			continue
		}
		if m.opts.policy == ReplaceInPlace {
			entries = append(entries, e)
			replaced = true
		}
	}
	if !replaced {
		entries = append(entries, e)
	}

	snap := &fuzzySnapshot[R]{entries: entries}
	for _, cur := range entries {
		snap.aliases = snap.aliases || cur.alias
	}
	m.snap.Store(snap)
}

// Lookup resolves descriptor. The most recently registered matching pattern
// wins. Unknown descriptors resolve to the fallback value.
func (m *Fuzzy[R]) Lookup(descriptor string, args ...any) R {
	snap := m.snap.Load()
	if len(args) == 0 {
		if v, ok := snap.memo.Load(descriptor); ok {
			r, _ := v.(R)
			m.observe(true)
			return r
		}
	}

	var seen map[aliasHop]bool
	if snap.aliases {
		seen = make(map[aliasHop]bool)
	}
	r, hit := m.lookup(snap.entries, descriptor, args, 0, seen)
	m.observe(hit)
	if hit && len(args) == 0 {
		snap.remember(descriptor, r)
	}
	return r
}

// aliasHop is one alias entry applied to one descriptor.
type aliasHop struct {
	entry      int
	descriptor string
}

// lookup scans entries newest first. Each alias hop is followed at most
// once per top-level lookup: a hop seen before either is part of the
// current chain (a cycle) or already resolved to nothing, so it is skipped
// and older entries are tried instead.
func (m *Fuzzy[R]) lookup(entries []fuzzyEntry[R], descriptor string, args []any, depth int, seen map[aliasHop]bool) (R, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if !e.pattern.Match(descriptor) {
			continue
		}
		if !e.alias {
			return e.resolve(descriptor, args...), true
		}

		hop := aliasHop{entry: i, descriptor: descriptor}
		if depth >= MaxAliasDepth || seen[hop] {
			continue
		}
		seen[hop] = true

		if r, ok := m.lookup(entries, e.target+Metadata(descriptor), args, depth+1, seen); ok {
			return r, true
		}
		// The canonical key resolved to nothing; keep scanning older entries.
	}
	return m.fallback, false
}

func (m *Fuzzy[R]) observe(hit bool) {
	if m.opts.observer != nil {
		m.opts.observer.ObserveLookup("fuzzy", hit)
	}
}

// Fallback returns the value unknown descriptors resolve to.
func (m *Fuzzy[R]) Fallback() R { return m.fallback }

// Len returns the number of bindings, aliases included.
func (m *Fuzzy[R]) Len() int { return len(m.snap.Load().entries) }

// Entries lists bindings from lowest to highest precedence.
func (m *Fuzzy[R]) Entries() []Entry {
	entries := m.snap.Load().entries
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, Entry{Pattern: e.pattern.String(), Target: e.target})
	}
	return out
}
