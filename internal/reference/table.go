package reference

import (
	"sort"
)

// Table is a read-only mapping from canonical key to record.
type Table[V any] struct {
	keys    []string
	records map[string]V
}

// NewTable copies entries into a new table. Keys are kept sorted so that
// iteration and fuzzy matching are deterministic.
func NewTable[V any](entries map[string]V) *Table[V] {
	t := &Table[V]{records: make(map[string]V, len(entries))}
	for k, v := range entries {
		t.records[k] = v
		t.keys = append(t.keys, k)
	}
	sort.Strings(t.keys)
	return t
}

func (t *Table[V]) Get(key string) (V, bool) {
	var zero V
	if t == nil {
		return zero, false
	}
	v, ok := t.records[key]
	return v, ok
}

func (t *Table[V]) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

func (t *Table[V]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Each calls fn for every record in key order.
func (t *Table[V]) Each(fn func(key string, v V)) {
	if t == nil {
		return
	}
	for _, k := range t.keys {
		fn(k, t.records[k])
	}
}

// Merge returns a new table holding base overlaid with override.
func Merge[V any](base, override *Table[V]) *Table[V] {
	m := map[string]V{}
	base.Each(func(k string, v V) { m[k] = v })
	override.Each(func(k string, v V) { m[k] = v })
	return NewTable(m)
}
