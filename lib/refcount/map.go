package refcount

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Option configures a Map.
type Option[K comparable, V any] func(*Map[K, V])

// WithCopy sets the function used to copy values into and out of the map.
// For handle values pass Handle.Clone so every reader owns a reference.
func WithCopy[K comparable, V any](fn func(V) V) Option[K, V] {
	return func(m *Map[K, V]) {
		m.copy = fn
	}
}

// WithEvict sets a function that runs for every value leaving the map
// through Put, Remove or Clear. It runs while the map lock is held and must
// not call back into the same map.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(m *Map[K, V]) {
		m.evict = fn
	}
}

// --------------------------------------------------------------------------
// Map
// --------------------------------------------------------------------------

// Map is a key/value table guarded by one lock. Every operation holds the
// lock for its full duration, lookups share it.
type Map[K comparable, V any] struct {
	mu    *xsync.RBMutex
	items map[K]V
	copy  func(V) V
	evict func(K, V)
}

// NewMap returns an empty map.
func NewMap[K comparable, V any](opts ...Option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		mu:    xsync.NewRBMutex(),
		items: make(map[K]V),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Map[K, V]) dup(v V) V {
	if m.copy == nil {
		return v
	}
	return m.copy(v)
}

func (m *Map[K, V]) drop(k K, v V) {
	if m.evict != nil {
		m.evict(k, v)
	}
}

// Add stores a copy of *value under key. It returns false without changing
// the map if value is nil or the key is already present.
func (m *Map[K, V]) Add(key K, value *V) bool {
	if value == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[key]; ok {
		return false
	}
	m.items[key] = m.dup(*value)
	return true
}

// Put stores a copy of value under key, evicting a previous value. It
// returns true if a value was replaced.
func (m *Map[K, V]) Put(key K, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, replaced := m.items[key]
	m.items[key] = m.dup(value)
	if replaced {
		m.drop(key, old)
	}
	return replaced
}

// Remove deletes key and evicts its value. It returns false if the key is
// absent.
func (m *Map[K, V]) Remove(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if !ok {
		return false
	}
	delete(m.items, key)
	m.drop(key, v)
	return true
}

// Take deletes key and hands its value to the caller without evicting it.
func (m *Map[K, V]) Take(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.items[key]
	if ok {
		delete(m.items, key)
	}
	return v, ok
}

// Find copies the value stored under key into out. out may be nil to only
// test for presence. It returns false if the key is absent.
func (m *Map[K, V]) Find(key K, out *V) bool {
	t := m.mu.RLock()
	defer m.mu.RUnlock(t)

	v, ok := m.items[key]
	if ok && out != nil {
		*out = m.dup(v)
	}
	return ok
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	return m.Find(key, nil)
}

// Count returns the number of entries.
func (m *Map[K, V]) Count() int {
	t := m.mu.RLock()
	defer m.mu.RUnlock(t)
	return len(m.items)
}

// Clear evicts every entry.
func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range m.items {
		m.drop(k, v)
	}
	m.items = make(map[K]V)
}

// Range calls fn for every entry while the read lock is held. Iteration
// stops when fn returns false. fn must not modify the map.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	t := m.mu.RLock()
	defer m.mu.RUnlock(t)

	for k, v := range m.items {
		if !fn(k, v) {
			return
		}
	}
}
