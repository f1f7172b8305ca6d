// Package object implements the object header and the five exotic
// object kinds (spec §3 "Object header", §4.2, §9 "Polymorphism without
// inheritance"). Every kind shares a common header; which kind a given
// object is gets decided at allocation time and never changes, so Go's
// ordinary interface dispatch — rather than the source's "low 3 bits of
// the prototype pointer" trick — is the idiomatic way to recover
// kind-specific behaviour (spec §9 explicitly sanctions this
// substitution for languages with a natural tagged-union/interface
// story).
package object

import (
	"sync/atomic"

	"jsrt/shape"
	"jsrt/value"
)

// ExoticKind is the discriminant spec §3 packs into the prototype
// pointer's low bits; here it is an explicit field on Header.
type ExoticKind uint8

const (
	KindOrdinary ExoticKind = iota
	KindArray
	KindFunction
	KindPrivate
	KindProxy
	KindDataView
)

// Header flag bits, stored in the same word so GC mark/notify toggles
// via CAS never race the not-extensible bit (spec §3 "max_values...plus
// three flag bits").
const (
	FlagNotExtensible uint32 = 1 << iota
	FlagGCMarked
	FlagGCNotified
)

// Header is the common prefix of every object: prototype link, exotic
// kind, the flat value-slot array, the owning shape, and the
// shape-cache id that may drift from the shape's own id after an
// in-place descriptor/data flip (spec §4.2 "Cache key").
type Header struct {
	Proto        Object
	Kind         ExoticKind
	Values       []value.Value
	Shape        *shape.Shape
	ShapeCacheID uint64

	// Self is the tagged value.Value this object is known by, filled in
	// once by the collector's Manage call. Accessor dispatch (package
	// prop) needs it to pass the original receiver as `this` without a
	// reverse object->value lookup.
	Self value.Value

	flags uint32 // FlagNotExtensible | FlagGCMarked | FlagGCNotified, CAS'd
}

// Object is implemented by every exotic kind. GC and the property
// protocol both dispatch through it instead of a prototype-pointer tag.
type Object interface {
	Hdr() *Header
}

func (h *Header) Hdr() *Header { return h }

// NotExtensible / SetNotExtensible implement Object.[[Extensible]].
func (h *Header) NotExtensible() bool { return atomic.LoadUint32(&h.flags)&FlagNotExtensible != 0 }

func (h *Header) SetNotExtensible() {
	for {
		old := atomic.LoadUint32(&h.flags)
		if atomic.CompareAndSwapUint32(&h.flags, old, old|FlagNotExtensible) {
			return
		}
	}
}

// Marked / SetMarked / ClearMarkAndNotify implement the GC's two-bit
// per-object metadata (spec §4.5 "Two-bit metadata per heap object").
func (h *Header) Marked() bool { return atomic.LoadUint32(&h.flags)&FlagGCMarked != 0 }

func (h *Header) Notified() bool { return atomic.LoadUint32(&h.flags)&FlagGCNotified != 0 }

// TryMark attempts to set the marked bit, returning true iff this call
// transitioned it from clear to set (spec "mark(v) tries to set the
// marked bit via compare-and-swap").
func (h *Header) TryMark() bool {
	for {
		old := atomic.LoadUint32(&h.flags)
		if old&FlagGCMarked != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&h.flags, old, old|FlagGCMarked) {
			return true
		}
	}
}

// TryNotify sets the notified bit unless either the marked or notified
// bit is already set, and reports whether it did so (spec "notify(v)
// sets it and enqueues v on ref_values, unless either bit is already
// set (idempotent)").
func (h *Header) TryNotify() bool {
	for {
		old := atomic.LoadUint32(&h.flags)
		if old&(FlagGCMarked|FlagGCNotified) != 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&h.flags, old, old|FlagGCNotified) {
			return true
		}
	}
}

// ClearMarkAndNotify resets both GC bits for a sweep survivor (spec
// "survivors... go into a rebuilt all_values tail with mark+notify
// cleared").
func (h *Header) ClearMarkAndNotify() {
	for {
		old := atomic.LoadUint32(&h.flags)
		n := old &^ (FlagGCMarked | FlagGCNotified)
		if atomic.CompareAndSwapUint32(&h.flags, old, n) {
			return
		}
	}
}

// Ordinary is a plain object: header plus nothing else.
type Ordinary struct {
	Header
}

func NewOrdinary(proto Object, sh *shape.Shape) *Ordinary {
	return &Ordinary{Header{Proto: proto, Kind: KindOrdinary, Shape: sh, Values: make([]value.Value, sh.NumValues())}}
}

// LengthSentinel marks an array whose integer-index fast path is
// disabled because something non-trivial happened to an element or to
// `length` (spec §3 "length = (uint32_t)-1 is a sentinel").
const LengthSentinel = ^uint32(0)

// Array adds the dedicated element-storage fast path to Header (spec §3
// "Array").
type Array struct {
	Header
	Elements []value.Value // separate from Header.Values, which holds named properties
	Length   uint32
	Capacity uint32
}

func NewArray(proto Object, sh *shape.Shape) *Array {
	return &Array{
		Header: Header{Proto: proto, Kind: KindArray, Shape: sh, Values: make([]value.Value, sh.NumValues())},
	}
}

// FastPathDisabled reports the sentinel check spec §4.3.4 relies on
// before touching arr.Elements directly.
func (a *Array) FastPathDisabled() bool { return a.Length == LengthSentinel }

func (a *Array) DisableFastPath() { a.Length = LengthSentinel }

// Function adds the native entry point, per-call-site shape cache slots,
// and the closure machinery (spec §3 "Function").
type Function struct {
	Header
	Native        func(args []value.Value, this value.Value) (value.Value, error)
	Name          string
	Location      string // source location for stack traces
	Strict        bool
	NotConstructor bool
	NewShape      *shape.Shape // pre-shaped `this` for constructors, if any
	WithScope     *WithFrame   // `with` scope chain head, if any (mutually exclusive with NewShape in the source; kept as two fields for clarity)

	ShapeCacheSlots []shape.CacheKey // inline-cache slots for property accesses within this function's call sites

	// ClosureVars holds this function's captured bindings by shared cell
	// pointer, so two nested functions capturing the same outer variable
	// observe each other's writes (spec "first half bindings, second half
	// backing storage" collapses to one indirection per cell in the
	// host-language port, per spec §9's sanctioned substitutions).
	ClosureVars []*ClosureVar
	ClosureTemp []*ClosureVar

	// Bound* implement Function.prototype.bind (spec §4.6 "Bind"): when
	// BoundTarget is non-nil, this function is a bind-proxy whose call
	// splices BoundArgs ahead of caller-supplied arguments and fixes
	// `this` to BoundThis.
	BoundTarget *Function
	BoundThis   value.Value
	BoundArgs   []value.Value
}

// ClosureVar is the heap-allocated three-field record spec §4.6
// describes: { value, owner_or_refcount, next }.
type ClosureVar struct {
	Value value.Value
	Owner *Function
	Next  *ClosureVar
}

func NewFunction(proto Object, sh *shape.Shape, native func([]value.Value, value.Value) (value.Value, error)) *Function {
	return &Function{
		Header: Header{Proto: proto, Kind: KindFunction, Shape: sh, Values: make([]value.Value, sh.NumValues())},
		Native: native,
	}
}

// Private carries the §3 "Private object" payload: a type tag, a
// value-or-pointer union, and a GC callback.
type Private struct {
	Header
	Type       string // e.g. "COR1" (coroutine), "MAP1".."MAP4" (map/set/weakmap/weakset)
	ValOrPtr   interface{}
	GCCallback func(reason GCReason)
}

// GCReason distinguishes the two moments a private object's callback
// fires (spec §4.5 "Per-object callbacks").
type GCReason uint8

const (
	GCReasonReclaim GCReason = iota
	GCReasonMark
)

func NewPrivate(proto Object, sh *shape.Shape, typ string) *Private {
	return &Private{Header: Header{Proto: proto, Kind: KindPrivate, Shape: sh, Values: make([]value.Value, sh.NumValues())}, Type: typ}
}

// WithFrame is one link of a function's `with` scope chain (spec §3
// "Function... with_scope chain head", GLOSSARY "with scope chain"):
// the object a `with (obj) { ... }` statement pushed, plus the next
// frame up (nil at the chain's head). Not itself GC-managed via
// value.Value/gc.Collector.Manage — it is a plain field of the owning
// Function, reached and marked the same way ClosureVars are (spec
// §4.5 "... and with_scope head").
type WithFrame struct {
	Header
	Obj  Object
	Next *WithFrame
}

func NewWithFrame(obj Object, next *WithFrame) *WithFrame {
	return &WithFrame{Obj: obj, Next: next}
}

// Proxy and DataView are reserved kinds whose trap/behavior set is out
// of scope (spec §3, §9 open question); they still need a header shape
// so they can flow through the generic object machinery (GC scanning,
// prototype walks) uniformly with the other kinds.
type Proxy struct{ Header }
type DataView struct{ Header }

func NewProxy(proto Object, sh *shape.Shape) *Proxy {
	return &Proxy{Header{Proto: proto, Kind: KindProxy, Shape: sh}}
}

func NewDataView(proto Object, sh *shape.Shape) *DataView {
	return &DataView{Header{Proto: proto, Kind: KindDataView, Shape: sh}}
}
