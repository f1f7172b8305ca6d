// Package value implements the tagged 64-bit value representation that
// every other package in this module passes around: NaN-boxed doubles,
// object/primitive references, and the small set of singleton sentinels
// (undefined, null, deleted, uninitialized, and the internal command
// sentinels used by the property and scope machinery).
//
// The scheme mirrors the quiet-NaN boxing the source compiler's runtime
// uses: a double whose exponent field is all ones and whose mantissa
// carries a type tag is never a valid IEEE-754 NaN payload a JS program
// can observe, so the whole space is free for the runtime to repurpose.
package value

import "math"

// Kind identifies what a Value actually holds, decoded from its tag bits.
type Kind uint8

const (
	KindNumber Kind = iota
	KindObject
	KindFlaggedPointer
	KindPrimitive
	KindSingleton
)

// PrimitiveKind distinguishes the three primitive-reference subtypes.
type PrimitiveKind uint8

const (
	PrimString PrimitiveKind = iota
	PrimSymbol
	PrimBigint
)

// Singleton enumerates the fixed, pointer-free values, including the
// internal command sentinels used by the property protocol and scope
// chain (§3 "singleton").
type Singleton uint8

const (
	Undefined Singleton = iota
	Null
	True
	False
	Deleted
	Uninitialized
	NextIsGetter
	NextIsSetter
	NextIsSpread
	DiscardScope
)

// Bit layout of the 64-bit tagged word.
//
//	bit  63      : unused / sign, kept zero
//	bits 62-52   : exponent, all-ones when tagged (11 bits)
//	bit  51      : quiet bit
//	bit  50      : dynamic-type bit
//	bits 62-50 together form the 13-bit NaN-tag pattern (§3)
//	bit  49      : object bit
//	bit  48      : primitive bit
//	bit  47      : flagged-pointer marker ("bit 1" of §3's object-reference row)
//	bits 46-44   : primitive subtype
//	bits 47-44   : singleton discriminant when neither the object bit
//	               nor the primitive bit is set
//	bits 43-0    : pointer payload (truncated/extended uintptr)
const (
	expMask      = uint64(0x7FF) << 52
	quietBit     = uint64(1) << 51
	dynBit       = uint64(1) << 50
	tagMask      = expMask | quietBit | dynBit
	objectBit    = uint64(1) << 49
	primitiveBit = uint64(1) << 48
	flaggedBit   = uint64(1) << 47
	subtypeShift = 44
	subtypeMask  = uint64(0x7) << subtypeShift
	payloadMask  = uint64(1)<<44 - 1
)

// Value is a tagged 64-bit word: either a finite/NaN IEEE-754 double, or
// one of the tagged kinds described in §3.
type Value uint64

// Number constructs a Value holding a plain float64. Callers must not
// pass a NaN-boxed pattern; use the dedicated constructors instead.
func Number(f float64) Value {
	return Value(math.Float64bits(f))
}

func isTagged(v Value) bool {
	return uint64(v)&tagMask == tagMask
}

// Kind reports which variant v currently holds.
func (v Value) Kind() Kind {
	if !isTagged(v) {
		return KindNumber
	}
	w := uint64(v)
	switch {
	case w&objectBit != 0 && w&flaggedBit != 0:
		return KindFlaggedPointer
	case w&objectBit != 0:
		return KindObject
	case w&primitiveBit != 0:
		return KindPrimitive
	default:
		return KindSingleton
	}
}

// IsNumber reports whether v is a finite double or a plain, non-tagged NaN.
func (v Value) IsNumber() bool { return v.Kind() == KindNumber }

// Float64 returns the IEEE-754 value. Only valid when IsNumber is true.
func (v Value) Float64() float64 { return math.Float64frombits(uint64(v)) }

// IsObject reports whether v is an ordinary object reference (not a
// flagged pointer).
func (v Value) IsObject() bool { return v.Kind() == KindObject }

func packPointer(tagBits uint64, ptr uintptr) Value {
	return Value(tagMask | tagBits | (uint64(ptr) & payloadMask))
}

func unpackPointer(v Value) uintptr {
	return uintptr(uint64(v) & payloadMask)
}

// Object constructs an object-reference value from a raw pointer. The
// caller is responsible for keeping the referent alive through the GC's
// own root set (see package gc) — the pointer is carried here purely as
// a uintptr, invisible to the host Go collector.
func Object(ptr uintptr) Value { return packPointer(objectBit, ptr) }

// FlaggedPointer constructs the "flagged pointer" variant that marks a
// stack-frame function slot or a property-descriptor cell.
func FlaggedPointer(ptr uintptr) Value { return packPointer(objectBit|flaggedBit, ptr) }

// Pointer extracts the raw pointer payload of an object, flagged-pointer,
// or primitive-reference value.
func (v Value) Pointer() uintptr { return unpackPointer(v) }

// Primitive constructs a primitive-reference value (string, symbol, or
// bigint) wrapping ptr.
func Primitive(kind PrimitiveKind, ptr uintptr) Value {
	return packPointer(primitiveBit|(uint64(kind)<<subtypeShift), ptr)
}

// IsPrimitive reports whether v is a string/symbol/bigint reference.
func (v Value) IsPrimitive() bool { return v.Kind() == KindPrimitive }

// PrimitiveKind reports the subtype of a primitive-reference value.
// Behaviour is undefined unless IsPrimitive() is true.
func (v Value) PrimitiveKind() PrimitiveKind {
	return PrimitiveKind((uint64(v) & subtypeMask) >> subtypeShift)
}

func (v Value) IsPrimitiveString() bool { return v.IsPrimitive() && v.PrimitiveKind() == PrimString }
func (v Value) IsPrimitiveSymbol() bool { return v.IsPrimitive() && v.PrimitiveKind() == PrimSymbol }
func (v Value) IsPrimitiveBigint() bool { return v.IsPrimitive() && v.PrimitiveKind() == PrimBigint }

// FromSingleton constructs a singleton value.
func FromSingleton(s Singleton) Value {
	return Value(tagMask | (uint64(s) << subtypeShift))
}

// IsSingleton reports whether v is a singleton, and if so its value.
func (v Value) IsSingleton() (Singleton, bool) {
	if v.Kind() != KindSingleton {
		return 0, false
	}
	return Singleton((uint64(v) >> subtypeShift) & 0xF), true
}

var (
	VUndefined     = FromSingleton(Undefined)
	VNull          = FromSingleton(Null)
	VTrue          = FromSingleton(True)
	VFalse         = FromSingleton(False)
	VDeleted       = FromSingleton(Deleted)
	VUninitialized = FromSingleton(Uninitialized)
)

// IsUndefined, IsNull, IsDeleted, IsUninitialized are convenience
// singleton checks used throughout the property protocol.
func (v Value) IsUndefined() bool     { return v == VUndefined }
func (v Value) IsNull() bool          { return v == VNull }
func (v Value) IsDeleted() bool       { return v == VDeleted }
func (v Value) IsUninitialized() bool { return v == VUninitialized }

// IsUndefinedOrNull implements the external `is_undefined_or_null` API.
func (v Value) IsUndefinedOrNull() bool { return v.IsUndefined() || v.IsNull() }

// Bool constructs a boolean singleton.
func Bool(b bool) Value {
	if b {
		return VTrue
	}
	return VFalse
}

// IsBoolean implements the external `is_boolean` API.
func (v Value) IsBoolean() bool { return v == VTrue || v == VFalse }

// IsTruthy / IsFalsy implement ToBoolean for numbers, objects and
// singletons without a to_primitive reduction. String, symbol and bigint
// references are not inspected and report false, whatever their payload.
func (v Value) IsTruthy() bool {
	switch v.Kind() {
	case KindNumber:
		f := v.Float64()
		return f != 0 && !math.IsNaN(f)
	case KindObject, KindFlaggedPointer:
		return true
	default:
		return v == VTrue
	}
}

func (v Value) IsFalsy() bool { return !v.IsTruthy() }

// AreBothNumbers implements the external `are_both_numbers` fast-path
// check used before attempting the generic binary-operator dispatch.
func AreBothNumbers(a, b Value) bool { return a.IsNumber() && b.IsNumber() }

// StrictEq implements `===`. Numbers compare by IEEE-754 equality (so
// NaN !== NaN and +0 === -0); every other kind compares by identity of
// the 64-bit word, which is exactly pointer/singleton identity for
// objects, primitives and singletons alike.
func StrictEq(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.Float64() == b.Float64()
	}
	return a == b
}
