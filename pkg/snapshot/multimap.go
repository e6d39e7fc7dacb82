package snapshot

// MultiMap is a mapping from keys to sets of values with stable insertion
// order. The value portion is a set so that the same filesystem path can be
// associated with multiple instances, which happens when a project aliases
// one path into several places in the tree.
type MultiMap[K comparable, V comparable] struct {
	entries map[K][]V
}

// NewMultiMap creates an empty MultiMap.
func NewMultiMap[K comparable, V comparable]() *MultiMap[K, V] {
	return &MultiMap[K, V]{entries: make(map[K][]V)}
}

// Insert associates the value with the key. Inserting an association that
// already exists is a no-op.
func (m *MultiMap[K, V]) Insert(key K, value V) {
	values := m.entries[key]
	for _, existing := range values {
		if existing == value {
			return
		}
	}
	m.entries[key] = append(values, value)
}

// Remove removes the association between the key and the value, if present.
func (m *MultiMap[K, V]) Remove(key K, value V) {
	values := m.entries[key]
	for index, existing := range values {
		if existing == value {
			values = append(values[:index], values[index+1:]...)
			if len(values) == 0 {
				delete(m.entries, key)
			} else {
				m.entries[key] = values
			}
			return
		}
	}
}

// Get returns the values associated with the key in insertion order. The
// returned slice must not be mutated.
func (m *MultiMap[K, V]) Get(key K) []V {
	return m.entries[key]
}

// Len returns the number of keys with at least one associated value.
func (m *MultiMap[K, V]) Len() int {
	return len(m.entries)
}
