package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map is a typed wrapper over sync.Map that also tracks its length.
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len returns the current number of elements in the map.
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

// Load returns the value stored for key, or the zero value if absent.
func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	if _, loaded := m.data.Swap(key, value); !loaded {
		m.length.Add(1)
	}
}

// Update replaces the value for key with fn(previous, ok) and returns it.
// Concurrent Update calls on the same key retry until their CAS wins.
func (m *Map[K, V]) Update(key K, fn func(prev V, ok bool) V) V {
	for {
		current, ok := m.data.Load(key)
		if !ok {
			var zero V
			next := fn(zero, false)
			if _, loaded := m.data.LoadOrStore(key, next); !loaded {
				m.length.Add(1)
				return next
			}
			continue
		}
		next := fn(current.(V), true)
		if m.data.CompareAndSwap(key, current, next) {
			return next
		}
	}
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) {
	if _, loaded := m.data.LoadAndDelete(key); loaded {
		m.length.Add(-1)
	}
}

// CompareAndDelete deletes the entry for key if its value equals old.
// It panics if V is not a comparable type.
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	if m.data.CompareAndDelete(key, old) {
		m.length.Add(-1)
		return true
	}
	return false
}

// Clear deletes all the entries.
func (m *Map[K, V]) Clear() {
	m.data.Clear()
	m.length.Store(0)
}

// Range calls f for each entry until f returns false.
// It is not a consistent snapshot under concurrent writes.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}

// Values returns a copy of all values.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, m.Len())
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out
}
