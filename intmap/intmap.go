// Package intmap implements the integer-keyed hash map that the spec
// lists as supporting machinery (§1 "an integer-keyed hash map"):
// shapes key their property-to-slot maps by interned-identifier pointer
// or 64-bit key (§3 "Shape"), which this package backs with a swiss
// table over uint64 keys to avoid Go map's per-entry pointer overhead
// on the mark/sweep hot path.
package intmap

import "github.com/dolthub/swiss"

// Map is a concurrency-naive (single-writer) integer-keyed map. Callers
// that need concurrent access — shapes shared across goroutines, for
// instance — must provide their own external synchronisation, exactly as
// the spec's shape transition map does (protected by the shape tree
// being append-only after publication).
type Map[V any] struct {
	m *swiss.Map[uint64, V]
}

// New constructs an empty Map with the given initial capacity hint.
func New[V any](capacityHint uint32) *Map[V] {
	if capacityHint == 0 {
		capacityHint = 8
	}
	return &Map[V]{m: swiss.NewMap[uint64, V](capacityHint)}
}

func (m *Map[V]) Get(key uint64) (V, bool) { return m.m.Get(key) }

func (m *Map[V]) Put(key uint64, v V) { m.m.Put(key, v) }

func (m *Map[V]) Delete(key uint64) bool { return m.m.Delete(key) }

func (m *Map[V]) Has(key uint64) bool { return m.m.Has(key) }

func (m *Map[V]) Len() int { return m.m.Count() }

// Each calls fn for every entry until fn returns false; iteration order
// is unspecified, as with Go's own map.
func (m *Map[V]) Each(fn func(key uint64, v V) bool) {
	m.m.Iter(func(k uint64, v V) bool { return !fn(k, v) })
}
