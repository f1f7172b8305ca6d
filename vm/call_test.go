package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/coroutine"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/value"
)

func TestCallInvokesNativeEntryWithArgs(t *testing.T) {
	e := newTestEnv(t)
	var gotArgs []value.Value
	var gotThis value.Value
	fn := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		gotArgs = args
		gotThis = this
		return e.InternString("ok"), nil
	}, "f", true, 0)

	this := e.InternString("receiver")
	args := []value.Value{e.InternString("a"), e.InternString("b")}
	result, err := e.Call(fn, this, args)
	require.NoError(t, err)
	assert.Equal(t, e.InternString("ok"), result)
	assert.Equal(t, args, gotArgs)
	assert.Equal(t, this, gotThis)
}

func TestCallRestoresStackOnError(t *testing.T) {
	e := newTestEnv(t)
	before := e.Stack.Depth()
	fn := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		return value.Value(0), assertErr{}
	}, "f", true, 0)

	_, err := e.Call(fn, value.VUndefined, nil)
	require.Error(t, err)
	assert.Equal(t, before, e.Stack.Depth())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestClosureCaptureIsSharedByReference(t *testing.T) {
	e := newTestEnv(t)
	outer := e.NewFunction(nil, "outer", true, 1)
	outerFn, ok := e.Resolve(outer)
	require.True(t, ok)
	outerObj := outerFn.(*object.Function)

	inner := e.NewFunction(nil, "inner", true, 0)
	innerFn, ok := e.Resolve(inner)
	require.True(t, ok)
	innerObj := innerFn.(*object.Function)

	e.NewClosure(innerObj, outerObj, []int{0})
	require.Len(t, innerObj.ClosureVars, 1)
	assert.Same(t, outerObj.ClosureTemp[0], innerObj.ClosureVars[0], "capture must share the outer temp cell by pointer")

	SetClosureVal(innerObj, 0, e.InternString("v1"))
	// Writing through the inner function's captured view must be visible
	// on the shared cell reachable from the outer function's own temp slot.
	assert.Equal(t, e.InternString("v1"), outerObj.ClosureTemp[0].Value)
}

func TestClosureValUninitializedErrors(t *testing.T) {
	e := newTestEnv(t)
	fn := e.NewFunction(nil, "f", true, 1)
	fnObj, ok := e.Resolve(fn)
	require.True(t, ok)
	f := fnObj.(*object.Function)
	f.ClosureVars = append(f.ClosureVars, f.ClosureTemp[0])

	_, err := ClosureVal(f, 0)
	assert.Error(t, err)

	// Bit-complemented index skips the uninitialized check.
	v, err := ClosureVal(f, ^0)
	require.NoError(t, err)
	assert.True(t, v.IsUninitialized())
}

func TestBindSplicesArgsAndFixesThis(t *testing.T) {
	e := newTestEnv(t)
	var gotArgs []value.Value
	var gotThis value.Value
	target := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		gotArgs = args
		gotThis = this
		return value.VUndefined, nil
	}, "target", true, 0)

	boundThis := e.InternString("bound-this")
	bound, err := e.Bind(target, boundThis, []value.Value{e.InternString("p1")})
	require.NoError(t, err)

	_, err = e.Call(bound, e.InternString("ignored-this"), []value.Value{e.InternString("c1")})
	require.NoError(t, err)
	assert.Equal(t, []value.Value{e.InternString("p1"), e.InternString("c1")}, gotArgs)
	assert.Equal(t, boundThis, gotThis)
}

func TestBindDefaultsToNonConstructorUntilFlaggedBack(t *testing.T) {
	e := newTestEnv(t)
	target := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		return value.VUndefined, nil
	}, "target", true, 0)

	bound, err := e.Bind(target, value.VUndefined, nil)
	require.NoError(t, err)

	_, err = e.CallNew(bound, nil)
	assert.Error(t, err, "a bound function must not be constructible by default")

	e.FlagAsConstructor(bound)
	_, err = e.CallNew(bound, nil)
	assert.NoError(t, err, "FlagAsConstructor must opt the bound function back in")
}

func TestHasInstanceWalksPrototypeChainThroughBind(t *testing.T) {
	e := newTestEnv(t)
	// NewFunction installs no `prototype`; give each constructor its own.
	withPrototype := func(fn value.Value) {
		fnObj, ok := e.Resolve(fn)
		require.True(t, ok)
		protoObj := object.NewOrdinary(e.Prototype("Object"), e.EmptyShape)
		e.GC.Manage(protoObj)
		require.NoError(t, prop.SetProp(e.PropContext(), fnObj, e.Interner.InternString("prototype"), protoObj.Self, nil))
	}
	ctor := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		return value.VUndefined, nil
	}, "Ctor", true, 0)
	e.FlagAsConstructor(ctor)
	withPrototype(ctor)

	inst, err := e.CallNew(ctor, nil)
	require.NoError(t, err)

	ok, err := e.HasInstance(ctor, inst)
	require.NoError(t, err)
	assert.True(t, ok)

	other := e.NewFunction(nil, "Other", true, 0)
	withPrototype(other)
	ok, err = e.HasInstance(other, inst)
	require.NoError(t, err)
	assert.False(t, ok)

	bound, err := e.Bind(ctor, value.VUndefined, nil)
	require.NoError(t, err)
	ok, err = e.HasInstance(bound, inst)
	require.NoError(t, err)
	assert.True(t, ok, "instanceof through a bound constructor must target the unwrapped function")
}

func TestCallNewAllocatesReceiverFromPrototype(t *testing.T) {
	e := newTestEnv(t)
	var gotThis value.Value
	ctor := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		gotThis = this
		return value.VUndefined, nil
	}, "Ctor", true, 0)

	result, err := e.CallNew(ctor, nil)
	require.NoError(t, err)
	assert.Equal(t, result, gotThis)
	resultObj, ok := e.Resolve(result)
	require.True(t, ok)
	assert.Equal(t, e.Prototype("Object"), resultObj.Hdr().Proto)
}

func TestCallNewRejectsNonConstructor(t *testing.T) {
	e := newTestEnv(t)
	fn := e.NewFunction(func(args []value.Value, this value.Value) (value.Value, error) {
		return value.VUndefined, nil
	}, "f", true, 0)
	fnObj, ok := e.Resolve(fn)
	require.True(t, ok)
	fnObj.(*object.Function).NotConstructor = true

	_, err := e.CallNew(fn, nil)
	assert.Error(t, err)
}

func TestWithScopeResolvesBeforeGlobal(t *testing.T) {
	e := newTestEnv(t)
	fn := e.NewFunction(nil, "f", false, 0)
	fnObj, ok := e.Resolve(fn)
	require.True(t, ok)
	f := fnObj.(*object.Function)

	scopeObj := object.NewOrdinary(e.Prototype("Object"), e.EmptyShape)
	e.GC.Manage(scopeObj)
	key := e.Interner.InternString("x")
	require.NoError(t, e.SetWith(f, key, e.InternString("not-set-yet")))

	// SetWith writes into a with object only when it already has the key.
	require.NoError(t, prop.SetProp(e.PropContext(), scopeObj, key, e.InternString("placeholder"), nil))
	ScopeWith(f, scopeObj)
	require.NoError(t, e.SetWith(f, key, e.InternString("scoped")))

	got, err := e.GetWith(f, key)
	require.NoError(t, err)
	assert.Equal(t, e.InternString("scoped"), got)

	PopWith(f)
	got, err = e.GetWith(f, key)
	require.NoError(t, err)
	assert.Equal(t, e.InternString("not-set-yet"), got)
}

func TestWithScopeUnscopablesOptsOut(t *testing.T) {
	e := newTestEnv(t)
	fn := e.NewFunction(nil, "f", false, 0)
	fnObj, ok := e.Resolve(fn)
	require.True(t, ok)
	f := fnObj.(*object.Function)

	scopeObj := object.NewOrdinary(e.Prototype("Object"), e.EmptyShape)
	e.GC.Manage(scopeObj)
	key := e.Interner.InternString("x")
	require.NoError(t, prop.SetProp(e.PropContext(), scopeObj, key, e.InternString("scope-value"), nil))
	require.NoError(t, prop.SetProp(e.PropContext(), e.Global, key, e.InternString("global-value"), nil))
	ScopeWith(f, scopeObj)

	got, err := e.GetWith(f, key)
	require.NoError(t, err)
	assert.Equal(t, e.InternString("scope-value"), got, "unqualified lookup must prefer the with-scope object")

	unscopablesKey, ok := e.IdentOf(e.WellKnown["@@unscopables"])
	require.True(t, ok)
	unscopablesObj := object.NewOrdinary(e.Prototype("Object"), e.EmptyShape)
	e.GC.Manage(unscopablesObj)
	require.NoError(t, prop.SetProp(e.PropContext(), unscopablesObj, key, value.VTrue, nil))
	require.NoError(t, prop.SetProp(e.PropContext(), scopeObj, unscopablesKey, unscopablesObj.Self, nil))

	got, err = e.GetWith(f, key)
	require.NoError(t, err)
	assert.Equal(t, e.InternString("global-value"), got, "a key listed in @@unscopables must be skipped in the with object")
}

func TestCoroutineNextDrivesFiber(t *testing.T) {
	e := newTestEnv(t)
	v := e.NewCoroutine(func(y *coroutine.Yielder) (value.Value, error) {
		_, err := y.Yield(e.InternString("first"))
		if err != nil {
			return value.Value(0), err
		}
		return e.InternString("done"), nil
	})

	got, done, err := e.CoroutineNext(v, value.VUndefined)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, e.InternString("first"), got)

	got, done, err = e.CoroutineNext(v, value.VUndefined)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, e.InternString("done"), got)
}
