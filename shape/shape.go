// Package shape implements the hidden-shape transition tree (spec §3
// "Shape", §4.2). A shape maps property keys to value-slot indices;
// adding a property walks (or creates) a transition edge to a child
// shape, so two objects with the same property-addition history share
// structure and a call-site cache keyed by shape id stays valid across
// every object with that shape.
package shape

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"

	"jsrt/intern"
	"jsrt/intmap"
)

// MaxSlots is the largest number of named properties a shape may carry
// (spec §4.2 "At most 2²⁴ − 1 named properties per shape").
const MaxSlots = 1<<24 - 1

// ErrTooManyProperties is the RangeError(property_count) kind.
var ErrTooManyProperties = errors.New("property_count")

var nextID uint64 // shape ids are monotonic and never reused (spec §3)

func allocID() uint64 { return atomic.AddUint64(&nextID, 1) }

// Kind distinguishes a data slot from a descriptor slot in a cache key
// (spec §4.2 "Cache key").
type Kind uint8

const (
	KindData Kind = iota
	KindDescriptor
)

// Entry is what a shape's transition map stores for one key: either a
// slot index (IsSlot true) or a pointer to the child shape reached by
// adding that key (IsSlot false).
type Entry struct {
	SlotIndex int32
	SlotKind  Kind
	IsWritable bool // meaningful only when SlotKind == KindDescriptor
	Child     *Shape
	IsSlot    bool
}

// Shape is an immutable node in the transition tree once published:
// adding a property never mutates an existing shape's layout, it only
// appends a new transition entry and/or produces a child (spec §3
// "Shapes are never mutated destructively once published").
type Shape struct {
	ID        uint64
	parent    *Shape
	numValues int32

	mu          sync.Mutex // guards transitions; shared parents may race to add the same child
	transitions *intmap.Map[Entry]
	keys        []*intern.Ident // slot index -> key, for reverse lookup / enumeration
}

// Root constructs the empty root shape every object's shape chain
// starts from (spec §3 "environment... empty-shape root").
func Root() *Shape {
	return &Shape{
		ID:          allocID(),
		transitions: intmap.New[Entry](0),
	}
}

// NumValues is the number of declared slots this shape's objects carry.
func (s *Shape) NumValues() int32 { return s.numValues }

// Parent is the shape this one transitioned from, or nil for the root.
func (s *Shape) Parent() *Shape { return s.parent }

func keyOf(id *intern.Ident) uint64 { return uint64(uintptr(unsafe.Pointer(id))) }

// Lookup reports the slot entry for key, searching this shape and then
// its ancestors, or else this shape's own child-transition entry for
// key, without creating anything.
func (s *Shape) Lookup(key *intern.Ident) (Entry, bool) {
	k := keyOf(key)
	s.mu.Lock()
	own, ok := s.transitions.Get(k)
	s.mu.Unlock()
	if ok && own.IsSlot {
		return own, true
	}
	for p := s.parent; p != nil; p = p.parent {
		p.mu.Lock()
		e, found := p.transitions.Get(k)
		p.mu.Unlock()
		if found && e.IsSlot {
			return e, true
		}
	}
	return own, ok
}

// AddDataSlot transitions to (or reuses) the child shape that adds key
// as a plain data slot (spec §4.2 "Shape transition protocol"). Two
// objects transitioning through the same (shape, key) pair converge on
// the same child, which is what makes the shape cache valid across
// objects (spec testable property 6).
func (s *Shape) AddDataSlot(key *intern.Ident) (*Shape, int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(key)
	if e, ok := s.transitions.Get(k); ok {
		if e.IsSlot {
			return s, e.SlotIndex, nil
		}
		return e.Child, e.Child.numValues - 1, nil
	}

	if s.numValues >= MaxSlots {
		return nil, 0, ErrTooManyProperties
	}

	child := &Shape{
		ID:          allocID(),
		parent:      s,
		numValues:   s.numValues + 1,
		transitions: intmap.New[Entry](0),
		keys:        append(append([]*intern.Ident{}, s.keys...), key),
	}
	slot := s.numValues
	s.transitions.Put(k, Entry{Child: child, IsSlot: false})
	// The child also records a direct data-slot entry for itself so a
	// shape-preserving write-in-place (delete, or the same key redefined
	// through this shape) can resolve the slot without walking up.
	child.transitions.Put(k, Entry{SlotIndex: slot, SlotKind: KindData, IsSlot: true})
	return child, slot, nil
}

// KeyAt returns the key stored at slot index i.
func (s *Shape) KeyAt(i int32) *intern.Ident {
	if i < 0 || int(i) >= len(s.keys) {
		return nil
	}
	return s.keys[i]
}

// Keys returns the shape's declared keys in slot order.
func (s *Shape) Keys() []*intern.Ident {
	out := make([]*intern.Ident, len(s.keys))
	copy(out, s.keys)
	return out
}

// CacheKey packs (shape id, slot index, descriptor flags) into the
// single 64-bit cache key spec §4.2 describes: the high bit of the slot
// index marks a descriptor slot, the adjacent bit its writability, so a
// caller can tell data slots from (read-only) descriptor slots without
// re-inspecting the descriptor.
type CacheKey uint64

const (
	descriptorFlag = uint64(1) << 62
	writableFlag   = uint64(1) << 61
	slotMask       = writableFlag - 1
)

// PackCacheKey builds the call-site cache key for (shapeID, slot, kind).
func PackCacheKey(shapeID uint64, slot int32, kind Kind, writable bool) CacheKey {
	w := shapeID<<32 | uint64(uint32(slot))&slotMask
	if kind == KindDescriptor {
		w |= descriptorFlag
		if writable {
			w |= writableFlag
		}
	}
	return CacheKey(w)
}

// Unpack reverses PackCacheKey.
func (c CacheKey) Unpack() (shapeID uint64, slot int32, kind Kind, writable bool) {
	w := uint64(c)
	shapeID = (w &^ (descriptorFlag | writableFlag)) >> 32
	slot = int32(w & slotMask)
	if w&descriptorFlag != 0 {
		kind = KindDescriptor
		writable = w&writableFlag != 0
	}
	return
}
