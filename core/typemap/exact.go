package typemap

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Exact resolves keys by strict equality. Keys are indexed by hash, so a
// lookup costs one map access per alias hop.
type Exact[K comparable, R any] struct {
	mu       sync.Mutex
	snap     atomic.Pointer[exactSnapshot[K, R]]
	fallback R
	opts     options
}

type exactEntry[K comparable, R any] struct {
	resolve Resolver[K, R]
	target  K
	alias   bool
}

type exactSnapshot[K comparable, R any] struct {
	entries map[K]exactEntry[K, R]
	order   []K
}

// NewExact creates an empty map that resolves unknown keys to fallback.
func NewExact[K comparable, R any](fallback R, opts ...Option) *Exact[K, R] {
	m := &Exact[K, R]{
		fallback: fallback,
		opts:     buildOptions(opts),
	}
	m.snap.Store(&exactSnapshot[K, R]{entries: map[K]exactEntry[K, R]{}})
	return m
}

// Register binds key to a fixed value.
func (m *Exact[K, R]) Register(key K, value R) error {
	if isNil(value) {
		return fmt.Errorf("register %v: %w", key, ErrInvalidRegistration)
	}
	m.put(key, exactEntry[K, R]{resolve: func(K, ...any) R { return value }})
	return nil
}

// RegisterFunc binds key to a resolver.
func (m *Exact[K, R]) RegisterFunc(key K, fn Resolver[K, R]) error {
	if fn == nil {
		return fmt.Errorf("register %v: %w", key, ErrInvalidRegistration)
	}
	m.put(key, exactEntry[K, R]{resolve: fn})
	return nil
}

// Alias redirects key to whatever canonical is bound to at lookup time.
func (m *Exact[K, R]) Alias(key, canonical K) error {
	m.put(key, exactEntry[K, R]{target: canonical, alias: true})
	return nil
}

func (m *Exact[K, R]) put(key K, e exactEntry[K, R]) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	next := &exactSnapshot[K, R]{
		entries: make(map[K]exactEntry[K, R], len(old.entries)+1),
		order:   make([]K, 0, len(old.order)+1),
	}
	for k, v := range old.entries {
		next.entries[k] = v
	}

	_, exists := old.entries[key]
	for _, k := range old.order {
		if k == key && m.opts.policy == ReplaceAsNewest {
			continue
		}
		next.order = append(next.order, k)
	}
	if !exists || m.opts.policy == ReplaceAsNewest {
		next.order = append(next.order, key)
	}
	next.entries[key] = e

	m.snap.Store(next)
}

// Lookup resolves key, following aliases. Unknown keys resolve to the
// fallback value.
func (m *Exact[K, R]) Lookup(key K, args ...any) R {
	r, hit := m.lookup(key, args, 0)
	if m.opts.observer != nil {
		m.opts.observer.ObserveLookup("exact", hit)
	}
	return r
}

func (m *Exact[K, R]) lookup(key K, args []any, depth int) (R, bool) {
	e, ok := m.snap.Load().entries[key]
	if !ok {
		return m.fallback, false
	}
	if !e.alias {
		return e.resolve(key, args...), true
	}
	if depth >= MaxAliasDepth {
		return m.fallback, false
	}
	return m.lookup(e.target, args, depth+1)
}

// Fallback returns the value unknown keys resolve to.
func (m *Exact[K, R]) Fallback() R { return m.fallback }

// Len returns the number of bindings, aliases included.
func (m *Exact[K, R]) Len() int { return len(m.snap.Load().entries) }

// Entries lists bindings in registration order.
func (m *Exact[K, R]) Entries() []Entry {
	snap := m.snap.Load()
	out := make([]Entry, 0, len(snap.order))
	for _, k := range snap.order {
		e := snap.entries[k]
		entry := Entry{Pattern: fmt.Sprint(k)}
		if e.alias {
			entry.Target = fmt.Sprint(e.target)
		}
		out = append(out, entry)
	}
	return out
}
