// Package store holds the in-memory aggregate state the engine mutates
// while applying events, and tracks which records each event dirtied.
package store

import "sort"

// Entity is any persistable aggregate record.
type Entity interface {
	Kind() string
	ID() string
}

// Store is the aggregate state the engine reads and writes.
type Store interface {
	Get(kind, id string) (Entity, bool)
	Put(e Entity)
}

// MemStore is the map-backed store owned by the engine goroutine.
// It is not safe for concurrent use; the engine is single-threaded.
type MemStore struct {
	records map[string]Entity
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Entity)}
}

func key(kind, id string) string { return kind + "/" + id }

func (m *MemStore) Get(kind, id string) (Entity, bool) {
	e, ok := m.records[key(kind, id)]
	return e, ok
}

func (m *MemStore) Put(e Entity) {
	m.records[key(e.Kind(), e.ID())] = e
}

// Len returns the number of records held.
func (m *MemStore) Len() int { return len(m.records) }

// TrackingStore wraps a Store and records every entity written through
// it. The engine drains the dirty set after each event to build the
// upsert batch for that event.
type TrackingStore struct {
	inner Store
	dirty map[string]Entity
}

func NewTrackingStore(inner Store) *TrackingStore {
	return &TrackingStore{inner: inner, dirty: make(map[string]Entity)}
}

func (t *TrackingStore) Get(kind, id string) (Entity, bool) {
	return t.inner.Get(kind, id)
}

func (t *TrackingStore) Put(e Entity) {
	t.inner.Put(e)
	t.dirty[key(e.Kind(), e.ID())] = e
}

// Drain returns the entities written since the last call, in a
// deterministic order, and resets the dirty set.
func (t *TrackingStore) Drain() []Entity {
	if len(t.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(t.dirty))
	for k := range t.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.dirty[k])
	}
	t.dirty = make(map[string]Entity)
	return out
}
