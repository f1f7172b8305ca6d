// Package prop implements the property-access protocol of spec §4.2-4.3:
// get/set/has/delete/defineProperty over the hidden-shape object model,
// plus the array fast path that bypasses shapes entirely for dense
// integer-keyed storage.
//
// A shape transition (package shape) only ever records *where* a key's
// slot lives, never what kind of value currently occupies it — so a
// slot's data-vs-descriptor nature is read dynamically off the stored
// value.Value's Kind (a plain value or a prop.Box-ed flagged-pointer
// descriptor), not off static shape metadata. That keeps a plain data
// property and a later defineProperty()-installed accessor sharing the
// exact same slot machinery, matching spec §4.3.5's "a data descriptor
// can always collapse back to (or be promoted from) a plain value in
// place."
package prop

import (
	"strconv"

	"jsrt/conv"
	"jsrt/except"
	"jsrt/intern"
	"jsrt/object"
	"jsrt/shape"
	"jsrt/value"
)

// Caller is the minimal call-back surface get/set need to invoke an
// accessor's getter or setter function. Supplied by package vm.
type Caller interface {
	Call(fn, this value.Value, args []value.Value) (value.Value, error)
}

// Context bundles the collaborators the protocol needs beyond the
// object graph itself: the call machinery for accessors, the coercion
// layer and interning set for to_property_key, and the primitive
// identifier lookup for string/symbol keys already backed by an Ident.
type Context struct {
	Caller   Caller
	Ops      conv.ObjectOps
	Interner *intern.Set
	Idents   IdentSource
}

// IdentSource recovers the canonical *intern.Ident backing a string or
// symbol primitive value.Value, the way package vm's registry does for
// every primitive it mints.
type IdentSource interface {
	IdentOf(v value.Value) (*intern.Ident, bool)
}

// ToPropertyKey implements spec §4.2 "Key normalisation": a string or
// symbol reference passes through as its backing identifier (interning
// it first if it is merely transient); anything else is converted with
// to_string and interned.
func ToPropertyKey(v value.Value, ctx *Context) (*intern.Ident, error) {
	if v.IsPrimitiveString() || v.IsPrimitiveSymbol() {
		if id, ok := ctx.Idents.IdentOf(v); ok {
			if id.InInterningSet() {
				return id, nil
			}
			return ctx.Interner.Intern(id), nil
		}
	}
	s, err := conv.ToString(v, ctx.Ops)
	if err != nil {
		return nil, err
	}
	return ctx.Interner.InternString(s), nil
}

func isLengthKey(key *intern.Ident) bool {
	return key.Subtype == intern.SubtypeString && key.String() == "length"
}

// arraySparseThreshold bounds how far the dense element fast path will
// grow for a single out-of-range write; beyond it the property falls
// back to the generic shape-keyed path instead of allocating a huge
// mostly-empty slice (spec §4.3.4 "very large or negative indices fall
// back to the generic path").
const arraySparseThreshold = 1 << 20

// arrayIndexOf reports the canonical array index key encodes, per the ES
// "array index" grammar: decimal digits, no leading zero (except "0"
// itself), strictly less than 2^32-1 (object.LengthSentinel is reserved).
func arrayIndexOf(key *intern.Ident) (uint32, bool) {
	if key.Subtype != intern.SubtypeString {
		return 0, false
	}
	s := key.String()
	if s == "0" {
		return 0, true
	}
	if s == "" || s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || uint32(n) == object.LengthSentinel {
		return 0, false
	}
	return uint32(n), true
}

// ArrayGet reads element idx directly from arr's dense backing store.
// It does not dereference an index that DefineProperty boxed into an
// accessor or non-canonical descriptor — callers on the get/set/has/
// delete paths go through loadArrayElemIfLive/storeArrayElem instead,
// which do.
func ArrayGet(arr *object.Array, idx uint32) (value.Value, bool) {
	if idx >= uint32(len(arr.Elements)) {
		return value.VUndefined, false
	}
	return arr.Elements[idx], true
}

// loadArrayElemIfLive mirrors loadSlotIfLive for an array's dense
// element store: DefineProperty may have boxed a descriptor into the
// same Elements slot ArrayGet reads, so a flagged-pointer entry is
// unboxed and, for an accessor, dispatched through ctx.Caller exactly
// like a generic shape slot.
func loadArrayElemIfLive(ctx *Context, receiver object.Object, arr *object.Array, idx uint32) (value.Value, bool, error) {
	if idx >= uint32(len(arr.Elements)) {
		return value.VUndefined, false, nil
	}
	raw := arr.Elements[idx]
	if raw.IsDeleted() {
		return value.VUndefined, false, nil
	}
	if raw.Kind() != value.KindFlaggedPointer {
		return raw, true, nil
	}
	d, ok := Unbox(raw)
	if !ok {
		return value.VUndefined, false, nil
	}
	if d.IsAccessor {
		if d.Get.IsUndefined() {
			return value.VUndefined, true, nil
		}
		v, err := ctx.Caller.Call(d.Get, receiver.Hdr().Self, nil)
		return v, true, err
	}
	return d.Value, true, nil
}

// storeArrayElem implements an index-keyed write against arr's dense
// store, honoring a boxed descriptor installed there by DefineProperty
// (accessor dispatch, non-writable rejection) the same way SetProp's
// generic shape-slot path does.
func storeArrayElem(ctx *Context, obj object.Object, arr *object.Array, idx uint32, val value.Value) error {
	if idx < uint32(len(arr.Elements)) {
		raw := arr.Elements[idx]
		if raw.Kind() == value.KindFlaggedPointer {
			if d, ok := Unbox(raw); ok {
				if d.IsAccessor {
					if d.Set.IsUndefined() {
						return except.New(except.TypeErrorReadOnlyProperty, "array index %d has no setter", idx)
					}
					_, err := ctx.Caller.Call(d.Set, obj.Hdr().Self, []value.Value{val})
					return err
				}
				if !d.Writable {
					return except.New(except.TypeErrorReadOnlyProperty, "array index %d is not writable", idx)
				}
				d.Value = val
				return nil
			}
		}
	}
	ArraySet(arr, idx, val)
	return nil
}

// ArraySet writes element idx into arr's dense backing store, growing it
// (and arr.Length) as needed. Callers must have already checked idx is
// within arraySparseThreshold.
func ArraySet(arr *object.Array, idx uint32, val value.Value) {
	if idx >= uint32(len(arr.Elements)) {
		grown := make([]value.Value, idx+1)
		copy(grown, arr.Elements)
		for i := len(arr.Elements); i < int(idx); i++ {
			grown[i] = value.VUndefined
		}
		arr.Elements = grown
	}
	arr.Elements[idx] = val
	if idx+1 > arr.Length {
		arr.Length = idx + 1
	}
}

// SetArrayLength implements spec §4.3.3's length-assignment truncation:
// shrinking drops elements from the top down, one at a time, exactly
// like ECMA-262's ArraySetLength. If an element holds a non-configurable
// descriptor (installed via DefineProperty), the walk stops there: the
// elements above it stay deleted, but the blocking element and
// everything below it are left untouched and the final length covers it
// (spec §4.3.3 "if an element holds a non-configurable descriptor the
// shrink stops there").
func SetArrayLength(arr *object.Array, newLen uint32) error {
	if newLen >= arr.Length {
		arr.Length = newLen
		return nil
	}
	cur := arr.Length
	for cur > newLen {
		idx := cur - 1
		if int(idx) < len(arr.Elements) {
			raw := arr.Elements[idx]
			if raw.Kind() == value.KindFlaggedPointer {
				if d, ok := Unbox(raw); ok {
					if !d.Configurable {
						arr.Length = cur
						if int(cur) < len(arr.Elements) {
							arr.Elements = arr.Elements[:cur]
						}
						return nil
					}
					Unregister(raw)
				}
			}
			arr.Elements[idx] = value.VDeleted
		}
		cur--
	}
	if int(cur) < len(arr.Elements) {
		arr.Elements = arr.Elements[:cur]
	}
	arr.Length = cur
	return nil
}

func numberToArrayLength(v value.Value, ops conv.ObjectOps) (uint32, error) {
	n, err := conv.ToNumber(v, ops)
	if err != nil {
		return 0, err
	}
	if n < 0 || n != float64(uint32(n)) {
		return 0, except.New(except.RangeErrorArrayLength, "invalid array length")
	}
	return uint32(n), nil
}

// loadSlotIfLive reads the value currently stored at owner's slot,
// dereferencing an accessor descriptor through ctx.Caller when present.
// live is false for a tombstoned (deleted) slot, signalling the caller
// to keep walking the prototype chain.
func loadSlotIfLive(ctx *Context, receiver, owner object.Object, slot int32) (value.Value, bool, error) {
	raw := owner.Hdr().Values[slot]
	if raw.IsDeleted() {
		return value.Value(0), false, nil
	}
	if raw.Kind() != value.KindFlaggedPointer {
		return raw, true, nil
	}
	d, ok := Unbox(raw)
	if !ok {
		return value.Value(0), false, nil
	}
	if d.IsAccessor {
		if d.Get.IsUndefined() {
			return value.VUndefined, true, nil
		}
		v, err := ctx.Caller.Call(d.Get, receiver.Hdr().Self, nil)
		return v, true, err
	}
	return d.Value, true, nil
}

// GetProp implements spec §4.3.1 `get_prop`. cache, if non-nil, is a
// per-call-site inline cache slot: a hit short-circuits the prototype
// walk entirely, and a lookup that finds the property as an own slot of
// obj refreshes it.
func GetProp(ctx *Context, obj object.Object, key *intern.Ident, cache *shape.CacheKey) (value.Value, error) {
	if arr, ok := obj.(*object.Array); ok {
		if isLengthKey(key) {
			return value.Number(float64(arr.Length)), nil
		}
		if !arr.FastPathDisabled() {
			if idx, ok := arrayIndexOf(key); ok {
				v, _, err := loadArrayElemIfLive(ctx, obj, arr, idx)
				return v, err
			}
		}
	}

	if cache != nil {
		if shapeID, slot, _, _ := cache.Unpack(); shapeID != 0 {
			if sh := obj.Hdr().Shape; sh != nil && sh.ID == shapeID {
				if v, live, err := loadSlotIfLive(ctx, obj, obj, slot); live || err != nil {
					return v, err
				}
			}
		}
	}

	for cur := obj; cur != nil; cur = cur.Hdr().Proto {
		sh := cur.Hdr().Shape
		if sh == nil {
			continue
		}
		entry, ok := sh.Lookup(key)
		if !ok || !entry.IsSlot {
			continue
		}
		v, live, err := loadSlotIfLive(ctx, obj, cur, entry.SlotIndex)
		if err != nil {
			return value.Value(0), err
		}
		if !live {
			continue
		}
		if cache != nil && cur == obj {
			*cache = refreshCacheKey(sh.ID, entry.SlotIndex, cur.Hdr().Values[entry.SlotIndex])
		}
		return v, nil
	}
	return value.VUndefined, nil
}

// refreshCacheKey builds the call-site cache entry for an own-property
// hit: descriptor slots (accessor or non-canonical data) are cached as
// not-blindly-writable, so SetProp always re-dispatches through the
// generic path instead of clobbering a getter/setter pair.
func refreshCacheKey(shapeID uint64, slot int32, raw value.Value) shape.CacheKey {
	if raw.Kind() != value.KindFlaggedPointer {
		return shape.PackCacheKey(shapeID, slot, shape.KindData, true)
	}
	writable := false
	if d, ok := Unbox(raw); ok {
		writable = !d.IsAccessor && d.Writable
	}
	return shape.PackCacheKey(shapeID, slot, shape.KindDescriptor, writable)
}

// HasProp implements spec §4.3.1 `has_prop` (the `in` operator and
// for-in's own-or-inherited enumeration test both reduce to this).
func HasProp(obj object.Object, key *intern.Ident) bool {
	if arr, ok := obj.(*object.Array); ok {
		if isLengthKey(key) {
			return true
		}
		if !arr.FastPathDisabled() {
			if idx, ok := arrayIndexOf(key); ok {
				if idx >= uint32(len(arr.Elements)) {
					return false
				}
				raw := arr.Elements[idx]
				if raw.IsDeleted() {
					return false
				}
				if raw.Kind() == value.KindFlaggedPointer {
					_, ok := Unbox(raw)
					return ok
				}
				return true
			}
		}
	}
	for cur := obj; cur != nil; cur = cur.Hdr().Proto {
		sh := cur.Hdr().Shape
		if sh == nil {
			continue
		}
		entry, ok := sh.Lookup(key)
		if !ok || !entry.IsSlot {
			continue
		}
		raw := cur.Hdr().Values[entry.SlotIndex]
		if raw.IsDeleted() {
			continue
		}
		if raw.Kind() == value.KindFlaggedPointer {
			if _, ok := Unbox(raw); !ok {
				continue
			}
		}
		return true
	}
	return false
}

// DeleteProp implements spec §4.3.1 `delete_prop`. Because shapes are
// never mutated once published, deleting a slot tombstones its value
// with VDeleted rather than removing the shape transition; the slot
// becomes reusable only in the sense that a later defineProperty or
// assignment through the very same shape will simply overwrite it.
func DeleteProp(obj object.Object, key *intern.Ident) (bool, error) {
	if arr, ok := obj.(*object.Array); ok && !arr.FastPathDisabled() {
		if idx, ok := arrayIndexOf(key); ok {
			if idx < uint32(len(arr.Elements)) {
				raw := arr.Elements[idx]
				if raw.Kind() == value.KindFlaggedPointer {
					if d, ok := Unbox(raw); ok {
						if !d.Configurable {
							return false, nil
						}
						Unregister(raw)
					}
				}
				arr.Elements[idx] = value.VDeleted
			}
			return true, nil
		}
	}
	sh := obj.Hdr().Shape
	if sh == nil {
		return true, nil
	}
	entry, ok := sh.Lookup(key)
	if !ok || !entry.IsSlot {
		return true, nil
	}
	raw := obj.Hdr().Values[entry.SlotIndex]
	if raw.Kind() == value.KindFlaggedPointer {
		if d, ok := Unbox(raw); ok {
			if !d.Configurable {
				return false, nil
			}
			Unregister(raw)
		}
	}
	obj.Hdr().Values[entry.SlotIndex] = value.VDeleted
	return true, nil
}

// SetProp implements spec §4.3.1/§4.3.4 `set_prop`, including the array
// length intercept and the fast-path/generic split for integer keys.
func SetProp(ctx *Context, obj object.Object, key *intern.Ident, val value.Value, cache *shape.CacheKey) error {
	if arr, ok := obj.(*object.Array); ok {
		if isLengthKey(key) {
			n, err := numberToArrayLength(val, ctx.Ops)
			if err != nil {
				return err
			}
			return SetArrayLength(arr, n)
		}
		if !arr.FastPathDisabled() {
			if idx, ok := arrayIndexOf(key); ok {
				if idx >= arraySparseThreshold {
					arr.DisableFastPath()
				} else {
					return storeArrayElem(ctx, obj, arr, idx, val)
				}
			}
		}
	}

	if cache != nil {
		if shapeID, slot, kind, writable := cache.Unpack(); shapeID != 0 && kind == shape.KindData && writable {
			if sh := obj.Hdr().Shape; sh != nil && sh.ID == shapeID {
				obj.Hdr().Values[slot] = val
				return nil
			}
		}
	}

	for cur := obj; cur != nil; cur = cur.Hdr().Proto {
		sh := cur.Hdr().Shape
		if sh == nil {
			continue
		}
		entry, ok := sh.Lookup(key)
		if !ok || !entry.IsSlot {
			continue
		}
		raw := cur.Hdr().Values[entry.SlotIndex]
		if raw.Kind() == value.KindFlaggedPointer {
			d, ok := Unbox(raw)
			if !ok {
				break // tombstoned descriptor: treat as absent, fall through to create
			}
			if d.IsAccessor {
				if d.Set.IsUndefined() {
					return except.New(except.TypeErrorReadOnlyProperty, "no setter for property %q", key.String())
				}
				_, err := ctx.Caller.Call(d.Set, obj.Hdr().Self, []value.Value{val})
				return err
			}
			if !d.Writable {
				return except.New(except.TypeErrorReadOnlyProperty, "property %q is not writable", key.String())
			}
			if cur != obj {
				break // inherited writable data descriptor: shadow with an own property
			}
			d.Value = val
			return nil
		}
		if raw.IsDeleted() {
			break
		}
		if cur != obj {
			break // inherited plain data property: shadow with an own property
		}
		if cache != nil {
			*cache = shape.PackCacheKey(sh.ID, entry.SlotIndex, shape.KindData, true)
		}
		obj.Hdr().Values[entry.SlotIndex] = val
		return nil
	}

	if obj.Hdr().NotExtensible() {
		return except.New(except.TypeErrorObjectNotExtensible, "object is not extensible")
	}
	newShape, slot, err := obj.Hdr().Shape.AddDataSlot(key)
	if err != nil {
		return except.Wrap(except.RangeErrorPropertyCount, err)
	}
	h := obj.Hdr()
	h.Shape = newShape
	if int(slot) >= len(h.Values) {
		h.Values = append(h.Values, val)
	} else {
		h.Values[slot] = val
	}
	if cache != nil {
		*cache = shape.PackCacheKey(newShape.ID, slot, shape.KindData, true)
	}
	return nil
}

// compatibleRedefine implements the subset of spec §4.3.5's
// non-configurable redefinition checks that matter once a property is
// already installed as a non-configurable descriptor: only a widening
// from accessor to accessor with identical get/set, or a data
// descriptor with identical value/writable, is allowed.
func compatibleRedefine(old *Descriptor, next *Descriptor) bool {
	if old.IsAccessor != next.IsAccessor {
		return false
	}
	if old.Enumerable != next.Enumerable {
		return false
	}
	if old.IsAccessor {
		return old.Get == next.Get && old.Set == next.Set
	}
	if !old.Writable && next.Writable {
		return false
	}
	return old.Writable == next.Writable && value.StrictEq(old.Value, next.Value)
}

// defineArrayElement implements DefineProperty for an array index while
// the dense fast path is still active: the descriptor is boxed into the
// same Elements slot ArrayGet/ArraySet already read (the flagged-pointer
// idiom generic shape slots use), rather than disconnecting the index
// from the dense store by routing it through a shape slot. That keeps
// SetArrayLength able to observe a non-configurable element without
// first demoting the whole array off the fast path.
func defineArrayElement(arr *object.Array, idx uint32, desc *Descriptor) error {
	var old *Descriptor
	if idx < uint32(len(arr.Elements)) {
		raw := arr.Elements[idx]
		switch {
		case raw.Kind() == value.KindFlaggedPointer:
			old, _ = Unbox(raw)
		case !raw.IsDeleted():
			old = &Descriptor{Value: raw, Writable: true, Enumerable: true, Configurable: true}
		}
	}
	if old != nil && !old.Configurable && !compatibleRedefine(old, desc) {
		return except.New(except.TypeErrorDefinePropertyDescriptor, "array index %d is not configurable", idx)
	}

	if idx < uint32(len(arr.Elements)) {
		if raw := arr.Elements[idx]; raw.Kind() == value.KindFlaggedPointer {
			Unregister(raw)
		}
	} else {
		grown := make([]value.Value, idx+1)
		copy(grown, arr.Elements)
		for i := len(arr.Elements); i < int(idx); i++ {
			grown[i] = value.VUndefined
		}
		arr.Elements = grown
	}
	if IsCanonicalDataDescriptor(desc) {
		arr.Elements[idx] = desc.Value
	} else {
		arr.Elements[idx] = Box(desc)
	}
	if idx+1 > arr.Length {
		arr.Length = idx + 1
	}
	return nil
}

// DefineProperty implements spec §4.3.5 `define_property`: installs or
// redefines an own property from a full descriptor record, collapsing
// to a plain stored value when the descriptor is the canonical
// {writable,enumerable,configurable: true} shape (spec §4.3.5's "collapse
// rule") and boxing it through the descriptor registry otherwise.
func DefineProperty(obj object.Object, key *intern.Ident, desc *Descriptor) error {
	if arr, ok := obj.(*object.Array); ok && !arr.FastPathDisabled() && !isLengthKey(key) {
		if idx, ok := arrayIndexOf(key); ok {
			return defineArrayElement(arr, idx, desc)
		}
	}

	sh := obj.Hdr().Shape
	if sh == nil {
		return except.New(except.TypeErrorIncompatibleObject, "object has no shape")
	}

	store := func() value.Value {
		if IsCanonicalDataDescriptor(desc) {
			return desc.Value
		}
		return Box(desc)
	}

	if entry, ok := sh.Lookup(key); ok && entry.IsSlot {
		raw := obj.Hdr().Values[entry.SlotIndex]
		if raw.Kind() == value.KindFlaggedPointer {
			if old, ok := Unbox(raw); ok {
				if !old.Configurable && !compatibleRedefine(old, desc) {
					return except.New(except.TypeErrorDefinePropertyDescriptor, "property %q is not configurable", key.String())
				}
				Unregister(raw)
			}
		}
		obj.Hdr().Values[entry.SlotIndex] = store()
		return nil
	}

	if obj.Hdr().NotExtensible() {
		return except.New(except.TypeErrorObjectNotExtensible, "object is not extensible")
	}
	newShape, slot, err := sh.AddDataSlot(key)
	if err != nil {
		return except.Wrap(except.RangeErrorPropertyCount, err)
	}
	h := obj.Hdr()
	h.Shape = newShape
	stored := store()
	if int(slot) >= len(h.Values) {
		h.Values = append(h.Values, stored)
	} else {
		h.Values[slot] = stored
	}
	return nil
}
