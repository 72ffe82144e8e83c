package memory

import "sync"

// table is a concurrency-safe map that stores and hands out copies, so callers
// never share mutable state with the store.
type table[V any] struct {
	mu    sync.RWMutex
	rows  map[string]V
	clone func(V) V
}

func newTable[V any](clone func(V) V) *table[V] {
	return &table[V]{rows: make(map[string]V), clone: clone}
}

func (t *table[V]) get(key string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	if !ok {
		var zero V
		return zero, false
	}
	return t.clone(v), true
}

// set writes v. With mustExist it only replaces, with mustBeNew it only inserts.
func (t *table[V]) set(key string, v V, mustExist, mustBeNew bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.rows[key]
	if (mustExist && !exists) || (mustBeNew && exists) {
		return false
	}
	t.rows[key] = t.clone(v)
	return true
}

func (t *table[V]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
