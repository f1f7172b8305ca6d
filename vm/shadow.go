package vm

import (
	"fmt"

	"jsrt/bigint"
	"jsrt/conv"
	"jsrt/except"
	"jsrt/intern"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/shape"
	"jsrt/value"
)

// installShadowHelpers installs the native helpers of the internal
// shadow namespace: defineProperty, getOwnProperty, preventExtensions,
// isExtensible, keysInObject, stackTrace, strPrint, and debugPrint (the
// object/array inspection dump, distinct from strPrint's to_string).
// No other helper is installed: there is no getOrSetPrototype,
// property_flags, private_object, big_util, num_util, map_util,
// sym_util, str_utf16, str_trim or str_sup entry.
// Compiled code reaches these through the ordinary property protocol —
// they are plain native functions installed as properties of e.Shadow —
// not through special linkage, matching spec §6's wording exactly.
func (e *Environment) installShadowHelpers() {
	install := func(name string, arity int, fn func([]value.Value, value.Value) (value.Value, error)) {
		v := e.NewFunction(fn, name, true, 0)
		key := e.Interner.InternString(name)
		_ = prop.DefineProperty(e.Shadow, key, &prop.Descriptor{Value: v, Writable: true, Configurable: true})
	}

	install("defineProperty", 3, e.shadowDefineProperty)
	install("getOwnProperty", 2, e.shadowGetOwnProperty)
	install("preventExtensions", 1, e.shadowPreventExtensions)
	install("isExtensible", 1, e.shadowIsExtensible)
	install("keysInObject", 1, e.shadowKeysInObject)
	install("stackTrace", 0, e.shadowStackTrace)
	install("strPrint", 1, e.shadowStrPrint)
	install("debugPrint", 1, e.shadowDebugPrint)
}

func argAt(args []value.Value, i int) value.Value {
	if i < 0 || i >= len(args) {
		return value.VUndefined
	}
	return args[i]
}

func (e *Environment) shadowDefineProperty(args []value.Value, this value.Value) (value.Value, error) {
	obj, ok := e.Resolve(argAt(args, 0))
	if !ok {
		return value.Value(0), except.New(except.TypeErrorExpectedObject, "defineProperty target must be an object")
	}
	key, err := prop.ToPropertyKey(argAt(args, 1), e.PropContext())
	if err != nil {
		return value.Value(0), err
	}
	descObj, ok := e.Resolve(argAt(args, 2))
	if !ok {
		return value.Value(0), except.New(except.TypeErrorExpectedObject, "property descriptor must be an object")
	}
	desc, err := e.parseDescriptor(descObj)
	if err != nil {
		return value.Value(0), err
	}
	if err := prop.DefineProperty(obj, key, desc); err != nil {
		return value.Value(0), err
	}
	return argAt(args, 0), nil
}

// parseDescriptor implements the ES descriptor-object parsing spec
// §4.3.5 names: value/writable OR get/set, not both, plus the three
// attribute flags, each defaulting to false/absent when the descriptor
// object doesn't carry it.
func (e *Environment) parseDescriptor(descObj object.Object) (*prop.Descriptor, error) {
	ctx := e.PropContext()
	has := func(name string) bool { return prop.HasProp(descObj, e.Interner.InternString(name)) }
	get := func(name string) (value.Value, error) { return prop.GetProp(ctx, descObj, e.Interner.InternString(name), nil) }

	hasValue, hasWritable := has("value"), has("writable")
	hasGet, hasSet := has("get"), has("set")
	if (hasValue || hasWritable) && (hasGet || hasSet) {
		return nil, except.New(except.TypeErrorDefinePropertyDescriptor, "descriptor cannot have both a value/writable pair and a get/set pair")
	}

	d := &prop.Descriptor{}
	if hasGet || hasSet {
		d.IsAccessor = true
		d.Get, d.Set = value.VUndefined, value.VUndefined
		if hasGet {
			g, err := get("get")
			if err != nil {
				return nil, err
			}
			if !g.IsUndefined() {
				if _, callable := e.Resolve(g); !callable {
					return nil, except.New(except.TypeErrorExpectedFunction, "getter must be callable")
				}
			}
			d.Get = g
		}
		if hasSet {
			s, err := get("set")
			if err != nil {
				return nil, err
			}
			if !s.IsUndefined() {
				if _, callable := e.Resolve(s); !callable {
					return nil, except.New(except.TypeErrorExpectedFunction, "setter must be callable")
				}
			}
			d.Set = s
		}
	} else {
		if hasValue {
			v, err := get("value")
			if err != nil {
				return nil, err
			}
			d.Value = v
		} else {
			d.Value = value.VUndefined
		}
		if hasWritable {
			w, err := get("writable")
			if err != nil {
				return nil, err
			}
			d.Writable = w.IsTruthy()
		}
	}
	if has("enumerable") {
		v, err := get("enumerable")
		if err != nil {
			return nil, err
		}
		d.Enumerable = v.IsTruthy()
	}
	if has("configurable") {
		v, err := get("configurable")
		if err != nil {
			return nil, err
		}
		d.Configurable = v.IsTruthy()
	}
	return d, nil
}

func (e *Environment) shadowGetOwnProperty(args []value.Value, this value.Value) (value.Value, error) {
	obj, ok := e.Resolve(argAt(args, 0))
	if !ok {
		return value.VUndefined, nil
	}
	key, err := prop.ToPropertyKey(argAt(args, 1), e.PropContext())
	if err != nil {
		return value.Value(0), err
	}
	if !prop.HasProp(obj, key) {
		return value.VUndefined, nil
	}
	return prop.GetProp(e.PropContext(), obj, key, nil)
}

func (e *Environment) shadowPreventExtensions(args []value.Value, this value.Value) (value.Value, error) {
	obj, ok := e.Resolve(argAt(args, 0))
	if !ok {
		return value.VFalse, nil
	}
	obj.Hdr().SetNotExtensible()
	return value.VTrue, nil
}

func (e *Environment) shadowIsExtensible(args []value.Value, this value.Value) (value.Value, error) {
	obj, ok := e.Resolve(argAt(args, 0))
	if !ok {
		return value.VFalse, nil
	}
	return value.Bool(!obj.Hdr().NotExtensible()), nil
}

func (e *Environment) shadowKeysInObject(args []value.Value, this value.Value) (value.Value, error) {
	obj, ok := e.Resolve(argAt(args, 0))
	if !ok {
		return value.Value(0), except.New(except.TypeErrorExpectedObject, "keysInObject requires an object")
	}
	sh := e.EmptyShape
	arr := object.NewArray(e.Prototype("Array"), sh)
	if objSh := obj.Hdr().Shape; objSh != nil {
		for _, k := range objSh.Keys() {
			prop.ArraySet(arr, arr.Length, e.InternString(k.String()))
		}
	}
	return e.GC.Manage(arr), nil
}

// shadowStackTrace implements `stack_trace`: renders every live stack
// frame's function name/location (spec §3 "Function... a source
// location string for stack traces"), innermost first.
func (e *Environment) shadowStackTrace(args []value.Value, this value.Value) (value.Value, error) {
	var frames []string
	for l := e.Stack.Top(); l != nil; l = l.Prev {
		if l.Val.Kind() != value.KindFlaggedPointer {
			continue
		}
		obj, ok := e.Resolve(l.Val)
		if !ok {
			continue
		}
		fn, ok := obj.(*object.Function)
		if !ok {
			continue
		}
		loc := fn.Location
		if loc == "" {
			loc = "<native>"
		}
		frames = append(frames, fmt.Sprintf("%s (%s)", fn.Name, loc))
	}
	return e.MakeString(joinLines(frames)), nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += "    at " + l
	}
	return out
}

// shadowStrPrint implements `str_print`: to_string, tolerant of a
// failing conversion (falls back to a placeholder rather than
// propagating — this is the last-resort stringifier `wmain` uses to
// report an uncaught exception, spec §6 "get_exception_as_string", and
// it must never itself throw).
func (e *Environment) shadowStrPrint(args []value.Value, this value.Value) (value.Value, error) {
	s, err := conv.ToString(argAt(args, 0), e)
	if err != nil {
		return e.MakeString("<error converting to string>"), nil
	}
	return e.MakeString(s), nil
}

// shadowDebugPrint implements `debug_print`: a diagnostic inspection
// rendering of an object's properties or an array's elements, distinct
// from str_print's to_string — the receiver itself is never converted
// with to_string; its own shape/elements are walked directly the way a
// debugger's object dump does. Every key of the shape is listed, whether
// or not it is enumerable, and each field or element value is rendered
// with to_string, so an object-valued field does go through its own
// toString/valueOf.
func (e *Environment) shadowDebugPrint(args []value.Value, this value.Value) (value.Value, error) {
	v := argAt(args, 0)
	obj, ok := e.Resolve(v)
	if !ok {
		s, err := conv.ToString(v, e)
		if err != nil {
			return e.MakeString("<error converting to string>"), nil
		}
		return e.MakeString(s), nil
	}
	if arr, ok := obj.(*object.Array); ok {
		out := "[ "
		for i, el := range arr.Elements {
			if i > 0 {
				out += ", "
			}
			out += e.debugPrintOne(el)
		}
		return e.MakeString(out + " ]"), nil
	}
	out := "{ "
	sh := obj.Hdr().Shape
	if sh != nil {
		first := true
		for _, k := range sh.Keys() {
			if !first {
				out += ", "
			}
			first = false
			fieldVal, err := prop.GetProp(e.PropContext(), obj, k, nil)
			if err != nil {
				continue
			}
			out += k.String() + ": " + e.debugPrintOne(fieldVal)
		}
	}
	return e.MakeString(out + " }"), nil
}

func (e *Environment) debugPrintOne(v value.Value) string {
	if v.IsDeleted() || v.IsUndefined() {
		return "undefined"
	}
	s, err := conv.ToString(v, e)
	if err != nil {
		return "<error>"
	}
	return s
}

// --- allocation API (spec §6 "Objects") ---------------------------------

// NewObj implements `newobj`: allocates an ordinary object from sh with
// the given slot values already filled in, in slot order.
func (e *Environment) NewObj(sh *shape.Shape, values []value.Value) value.Value {
	obj := object.NewOrdinary(e.Prototype("Object"), sh)
	copy(obj.Values, values)
	return e.GC.Manage(obj)
}

// NewArr implements `newarr`: allocates a dense array pre-populated with
// elements.
func (e *Environment) NewArr(elements []value.Value) value.Value {
	arr := object.NewArray(e.Prototype("Array"), e.EmptyShape)
	for _, v := range elements {
		prop.ArraySet(arr, arr.Length, v)
	}
	return e.GC.Manage(arr)
}

// NewBig implements `newbig`: wraps limbs (32-bit magnitude, low limb
// first; neg selects the sign) as a bigint primitive.
func (e *Environment) NewBig(limbs []uint32, neg bool) (value.Value, error) {
	b, err := bigint.FromLimbs(limbs, neg)
	if err != nil {
		return value.Value(0), except.Wrap(except.RangeErrorBigintTooLarge, err)
	}
	return e.MakeBigint(b), nil
}

// NewStr implements `newstr`: mints the primitive string value for a
// compiled-code static string literal. static is constructed once per
// literal by the compiled module's init code and handed to the runtime
// by reference on every subsequent execution; interning it is
// idempotent so repeat calls for the same literal recover the same
// canonical *intern.Ident (spec §3 "the runtime may read but never free
// them, and may only set the in-interning-set flag atomically").
func (e *Environment) NewStr(static *intern.Ident) value.Value {
	canonical := e.Interner.Intern(static)
	return e.prims.mintIdent(canonical)
}
