package completion

import (
	"sync"
	"time"
)

// Registry answers whether a key's work has completed.
// Implementations must be safe for concurrent use.
type Registry[K comparable] interface {
	// Has reports whether MarkDone has been called for key.
	Has(key K) bool

	// MarkDone records that key's work has completed.
	// Calling it again for the same key has no effect.
	MarkDone(key K)
}

// Record describes a completed key.
type Record struct {
	// At is when the key was first marked done (UTC).
	At time.Time
}

// Map is the default Registry, a map guarded by sync.RWMutex.
type Map[K comparable] struct {
	mu      sync.RWMutex
	entries map[K]Record
}

// Compile-time interface check.
var _ Registry[string] = (*Map[string])(nil)

// NewMap creates an empty Map.
func NewMap[K comparable]() *Map[K] {
	return &Map[K]{
		entries: make(map[K]Record),
	}
}

// Has implements Registry.
func (m *Map[K]) Has(key K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[key]
	return ok
}

// MarkDone implements Registry. The first completion time is kept.
func (m *Map[K]) MarkDone(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return
	}
	m.entries[key] = Record{At: time.Now().UTC()}
}

// Get returns the record for key and whether it exists.
func (m *Map[K]) Get(key K) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[key]
	return r, ok
}

// Forget removes key so that its work runs again on the next call.
//
// The barrier never calls Forget. If it is called while a call for key is
// between its fast-path check and its locked re-check, that call may run the
// work a second time.
func (m *Map[K]) Forget(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len returns the number of completed keys.
func (m *Map[K]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns all completed keys in no particular order.
func (m *Map[K]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// Range calls fn for each completed key until fn returns false.
//
// Range iterates over a snapshot, so fn may call MarkDone or Forget.
func (m *Map[K]) Range(fn func(K, Record) bool) {
	m.mu.RLock()
	snapshot := make(map[K]Record, len(m.entries))
	for k, v := range m.entries {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
