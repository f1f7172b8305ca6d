package vm

import (
	"jsrt/except"
	"jsrt/intern"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/value"
)

// NewFunction implements `newfunc`: allocates a Function object with
// native as its entry point and closureCount freshly allocated,
// uninitialized closure-variable cells (spec §4.6 "Closures").
func (e *Environment) NewFunction(native func([]value.Value, value.Value) (value.Value, error), name string, strict bool, closureCount int) value.Value {
	fn := object.NewFunction(e.Prototype("Function"), e.EmptyShape, native)
	fn.Name = name
	fn.Strict = strict
	for i := 0; i < closureCount; i++ {
		fn.ClosureTemp = append(fn.ClosureTemp, &object.ClosureVar{Value: value.VUninitialized, Owner: fn})
	}
	return e.GC.Manage(fn)
}

// NewClosure implements `newclosure`: captures the vars at indices in
// outer's temp chain into fn's own closure array, moving ownership the
// way spec §4.6 describes ("moves the pointers into the capturing
// function's closure array").
func (e *Environment) NewClosure(fn, outer *object.Function, indices []int) {
	for _, i := range indices {
		if i < 0 || i >= len(outer.ClosureTemp) {
			continue
		}
		cv := outer.ClosureTemp[i]
		fn.ClosureVars = append(fn.ClosureVars, cv)
	}
}

// ClosureVal implements `closureval`: reads closure cell idx of fn. A
// bit-complemented index signals "forwarded but possibly not
// initialised," in which case the uninitialized check is skipped (spec
// §4.6 "except when the index is bit-complemented").
func ClosureVal(fn *object.Function, idx int) (value.Value, error) {
	skipCheck := idx < 0
	if skipCheck {
		idx = ^idx
	}
	if idx < 0 || idx >= len(fn.ClosureVars) {
		return value.VUndefined, nil
	}
	cv := fn.ClosureVars[idx]
	if !skipCheck && cv.Value.IsUninitialized() {
		return value.Value(0), except.New(except.ReferenceErrorUninitializedVar, "cannot access variable before initialization")
	}
	return cv.Value, nil
}

// SetClosureVal writes closure cell idx of fn.
func SetClosureVal(fn *object.Function, idx int, v value.Value) {
	if idx < 0 {
		idx = ^idx
	}
	if idx < 0 || idx >= len(fn.ClosureVars) {
		return
	}
	fn.ClosureVars[idx].Value = v
}

// functionOf resolves v to its backing *object.Function, failing with
// TypeError_expected_function otherwise (spec §6 callfunc's receiver
// check).
func (e *Environment) functionOf(v value.Value) (*object.Function, error) {
	obj, ok := e.Resolve(v)
	if !ok {
		return nil, except.New(except.TypeErrorExpectedFunction, "value is not a function")
	}
	fn, ok := obj.(*object.Function)
	if !ok {
		return nil, except.New(except.TypeErrorExpectedFunction, "value is not a function")
	}
	return fn, nil
}

// unwindBind follows a bind-proxy chain to its ultimate callable target
// (spec §4.6 "Resolve func through any bind-proxy chain"), accumulating
// the bound arguments in application order and reporting the `this` the
// original (innermost) bind call fixed.
func unwindBind(fn *object.Function) (target *object.Function, prepend []value.Value, boundThis value.Value, isBound bool) {
	cur := fn
	for cur.BoundTarget != nil {
		isBound = true
		boundThis = cur.BoundThis
		prepend = append(prepend, cur.BoundArgs...)
		cur = cur.BoundTarget
	}
	return cur, prepend, boundThis, isBound
}

// Call implements `callfunc` (spec §4.6 "Call convention"): pushes one
// flagged-pointer stack link marking the frame (so a conservative/cheap
// stack walker — and this Environment's own ScanRoots — can find it),
// materialises non-strict `arguments`/`caller`, invokes the native
// entry, and restores the stack on the way out regardless of error.
func (e *Environment) Call(fnVal, this value.Value, args []value.Value) (value.Value, error) {
	fn, err := e.functionOf(fnVal)
	if err != nil {
		return value.Value(0), err
	}

	if target, prepend, boundThis, isBound := unwindBind(fn); isBound {
		callArgs := append(append([]value.Value{}, prepend...), args...)
		return e.Call(target.Self, boundThis, callArgs)
	}

	if fn.Native == nil {
		return value.Value(0), except.New(except.TypeErrorExpectedFunction, "value is not callable")
	}

	saved := e.Stack.Top()
	e.Stack.Push(value.FlaggedPointer(fnVal.Pointer()))
	defer e.Stack.RestoreTo(saved)

	if !fn.Strict {
		e.materializeArguments(fn, args, this)
		defer e.resetArgumentsAndCaller(fn)
	}

	return fn.Native(args, this)
}

// Bind implements `Function.prototype.bind`: a new function whose call
// splices boundArgs ahead of the caller-supplied ones and fixes `this`
// to boundThis for ordinary calls; a `new` dispatch through a bound
// function keeps the dynamic `this` CallNew itself constructs (spec
// §4.6 "unless called as constructor, in which case the dynamic this is
// kept" — CallNew's unwindBind use never consults BoundThis).
func (e *Environment) Bind(target value.Value, boundThis value.Value, boundArgs []value.Value) (value.Value, error) {
	targetFn, err := e.functionOf(target)
	if err != nil {
		return value.Value(0), err
	}
	bound := object.NewFunction(e.Prototype("Function"), e.EmptyShape, nil)
	bound.Name = "bound " + targetFn.Name
	bound.Strict = true
	bound.BoundTarget = targetFn
	bound.BoundThis = boundThis
	bound.BoundArgs = append([]value.Value{}, boundArgs...)
	// A bound function is not a constructor by default; the caller must
	// flag it back with FlagAsConstructor to opt back in.
	bound.NotConstructor = true
	v := e.GC.Manage(bound)
	bound.Native = func(args []value.Value, this value.Value) (value.Value, error) {
		// Reached only if something calls bound.Native directly,
		// bypassing Call's unwindBind short-circuit; keep it correct on
		// its own rather than relying purely on that fast path.
		callArgs := append(append([]value.Value{}, boundArgs...), args...)
		return e.Call(target, boundThis, callArgs)
	}
	return v, nil
}

// CallNew implements `callnew` (spec §4.6 "new dispatch"): resolves
// func through any bind chain, allocates the receiver from the
// constructor's cached new_shape (or the empty shape), sets new.target,
// invokes with the receiver as `this`, and returns the function's
// result if it is an object, else the receiver.
func (e *Environment) CallNew(fnVal value.Value, args []value.Value) (value.Value, error) {
	fn, err := e.functionOf(fnVal)
	if err != nil {
		return value.Value(0), err
	}
	target, prepend, _, isBound := unwindBind(fn)
	if isBound {
		// The bound wrapper's own NotConstructor flag governs here — Bind
		// defaults it to non-constructible regardless of the target's own
		// constructibility, and FlagAsConstructor clears it back on the
		// wrapper specifically (spec supplement: Function.prototype.bind).
		if fn.NotConstructor {
			return value.Value(0), except.New(except.TypeErrorExpectedConstructor, "value is not a constructor")
		}
		callArgs := append(append([]value.Value{}, prepend...), args...)
		return e.CallNew(target.Self, callArgs)
	}
	if fn.NotConstructor || fn.Native == nil {
		return value.Value(0), except.New(except.TypeErrorExpectedConstructor, "value is not a constructor")
	}

	protoVal, err := prop.GetProp(e.PropContext(), fn, e.Interner.InternString("prototype"), nil)
	if err != nil {
		return value.Value(0), err
	}
	protoObj, _ := e.Resolve(protoVal)
	if protoObj == nil {
		protoObj = e.Prototype("Object")
	}

	sh := fn.NewShape
	if sh == nil {
		sh = e.EmptyShape
	}
	receiverObj := object.NewOrdinary(protoObj, sh)
	for i := range receiverObj.Values {
		receiverObj.Values[i] = value.VDeleted
	}
	receiver := e.GC.Manage(receiverObj)

	prevTarget := e.newTarget
	e.newTarget = fnVal
	defer func() { e.newTarget = prevTarget }()

	result, err := e.Call(fnVal, receiver, args)
	if err != nil {
		return value.Value(0), err
	}
	if result.IsObject() {
		return result, nil
	}
	return receiver, nil
}

// FlagAsConstructor clears NotConstructor on fnVal's backing function, the
// explicit opt-back-in step a bound function needs after Bind defaults it
// to non-constructible. A non-function value is silently ignored.
func (e *Environment) FlagAsConstructor(fnVal value.Value) {
	obj, ok := e.Resolve(fnVal)
	if !ok {
		return
	}
	if fn, ok := obj.(*object.Function); ok {
		fn.NotConstructor = false
	}
}

// HasInstance implements `instanceof`: walks inst's prototype chain
// looking for ctor's own `.prototype`, unwrapping any bind-proxy chain
// first so `instanceof` targets the ultimately bound function rather than
// the wrapper Bind produced (spec has no explicit instanceof operation;
// this mirrors the original runtime's hasinstance, which a bound
// function's caller still expects to dispatch through).
func (e *Environment) HasInstance(ctor, inst value.Value) (bool, error) {
	ctorObj, ok := e.Resolve(ctor)
	if !ok {
		return false, nil
	}
	fn, ok := ctorObj.(*object.Function)
	if !ok {
		return false, nil
	}
	target, _, _, _ := unwindBind(fn)
	if !inst.IsObject() {
		return false, nil
	}
	protoVal, err := prop.GetProp(e.PropContext(), target, e.Interner.InternString("prototype"), nil)
	if err != nil {
		return false, err
	}
	funcProto, ok := e.Resolve(protoVal)
	if !ok {
		return false, except.New(except.TypeErrorExpectedObject, "prototype is not an object")
	}

	instObj, ok := e.Resolve(inst)
	if !ok {
		return false, nil
	}
	for p := instObj.Hdr().Proto; p != nil; p = p.Hdr().Proto {
		if p == funcProto {
			return true, nil
		}
	}
	return false, nil
}

// --- with scope ---------------------------------------------------------

// ScopeWith implements `scope_with`: pushes obj onto fn's with-scope
// chain (spec §6 "Scope with"). The chain is a singly linked list of
// objects searched before the global object for unqualified identifier
// resolution in non-strict mode (GLOSSARY "with scope chain").
func ScopeWith(fn *object.Function, obj object.Object) {
	fn.WithScope = object.NewWithFrame(obj, fn.WithScope)
}

// PopWith removes the innermost with-scope entry, restoring fn's chain
// to what it was before the matching ScopeWith.
func PopWith(fn *object.Function) {
	if fn.WithScope != nil {
		fn.WithScope = fn.WithScope.Next
	}
}

// CloneWithScope copies src's with-scope chain onto dst, the way a
// nested function closing over an enclosing `with` statement inherits
// its scope chain at creation time (spec §6 "pushes/pops/clones a scope
// chain on a function").
func CloneWithScope(dst, src *object.Function) { dst.WithScope = src.WithScope }

// unscopables reports whether obj's @@unscopables opts key out of `with`
// resolution against it (spec §6 "The @@unscopables symbol on a scope
// object opts specific keys out").
func (e *Environment) unscopables(obj object.Object, key *intern.Ident) bool {
	unscopablesKey, ok := e.Interner.Lookup(intern.SubtypeSymbol, "@@unscopables")
	if !ok {
		return false
	}
	v, err := prop.GetProp(e.PropContext(), obj, unscopablesKey, nil)
	if err != nil || v.IsUndefinedOrNull() {
		return false
	}
	tableObj, ok := e.Resolve(v)
	if !ok {
		return false
	}
	blocked, err := prop.GetProp(e.PropContext(), tableObj, key, nil)
	return err == nil && blocked.IsTruthy()
}

// GetWith / SetWith / DelWith / CallWith implement spec §6's
// `get/set/del/call_with`: scoped lookup through fn's with chain, then
// fallback to the global object (ReferenceError in strict mode on a
// total miss — but `with` never appears in strict-mode source, so a
// chain's own fallback is always non-strict; the strict-mode
// ReferenceError still applies to the unqualified-global-miss case a
// function with no with-scope at all hits).
func (e *Environment) GetWith(fn *object.Function, key *intern.Ident) (value.Value, error) {
	for w := fn.WithScope; w != nil; w = w.Next {
		if e.unscopables(w.Obj, key) {
			continue
		}
		if prop.HasProp(w.Obj, key) {
			return prop.GetProp(e.PropContext(), w.Obj, key, nil)
		}
	}
	if prop.HasProp(e.Global, key) {
		return prop.GetProp(e.PropContext(), e.Global, key, nil)
	}
	if fn.Strict {
		return value.Value(0), except.New(except.ReferenceErrorNotDefined, "%s is not defined", key.String())
	}
	return value.VUndefined, nil
}

func (e *Environment) SetWith(fn *object.Function, key *intern.Ident, val value.Value) error {
	for w := fn.WithScope; w != nil; w = w.Next {
		if e.unscopables(w.Obj, key) {
			continue
		}
		if prop.HasProp(w.Obj, key) {
			return prop.SetProp(e.PropContext(), w.Obj, key, val, nil)
		}
	}
	return prop.SetProp(e.PropContext(), e.Global, key, val, nil)
}

func (e *Environment) DelWith(fn *object.Function, key *intern.Ident) (bool, error) {
	for w := fn.WithScope; w != nil; w = w.Next {
		if e.unscopables(w.Obj, key) {
			continue
		}
		if prop.HasProp(w.Obj, key) {
			return prop.DeleteProp(w.Obj, key)
		}
	}
	return prop.DeleteProp(e.Global, key)
}

// CallWith resolves key through the with chain / global object the way
// GetWith does, then calls it with the resolving scope object as `this`
// (an unqualified call `f()` inside a `with` block must use the with
// object as receiver if f was found there).
func (e *Environment) CallWith(fn *object.Function, key *intern.Ident, args []value.Value) (value.Value, error) {
	for w := fn.WithScope; w != nil; w = w.Next {
		if e.unscopables(w.Obj, key) {
			continue
		}
		if prop.HasProp(w.Obj, key) {
			callee, err := prop.GetProp(e.PropContext(), w.Obj, key, nil)
			if err != nil {
				return value.Value(0), err
			}
			return e.Call(callee, w.Obj.Hdr().Self, args)
		}
	}
	callee, err := e.GetWith(fn, key)
	if err != nil {
		return value.Value(0), err
	}
	return e.Call(callee, value.VUndefined, args)
}
