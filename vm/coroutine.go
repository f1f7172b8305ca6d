package vm

import (
	"jsrt/coroutine"
	"jsrt/except"
	"jsrt/object"
	"jsrt/value"
)

// NewCoroutine implements `newcoroutine`: wraps body as a fiber, tracks
// it in this Environment's coroutine.Group (so ScanRoots sees its
// pending value, spec §4.5 "every coroutine fiber's own stack slice"),
// and boxes it as a Private object under type tag "COR1" the way spec
// §3 "Private object" describes for every non-ordinary internal slot
// payload.
func (e *Environment) NewCoroutine(body coroutine.Body) value.Value {
	f := coroutine.New(body)
	e.Coroutines.Track(f)

	priv := object.NewPrivate(e.Prototype("Object"), e.EmptyShape, "COR1")
	priv.ValOrPtr = f
	priv.GCCallback = func(reason object.GCReason) {
		if reason == object.GCReasonReclaim {
			f.Kill()
			e.Coroutines.Untrack(f)
		}
	}
	return e.GC.Manage(priv)
}

func (e *Environment) fiberOf(v value.Value) (*coroutine.Fiber, error) {
	obj, ok := e.Resolve(v)
	if !ok {
		return nil, except.New(except.TypeErrorExpectedObject, "value is not a coroutine")
	}
	priv, ok := obj.(*object.Private)
	if !ok || priv.Type != "COR1" {
		return nil, except.New(except.TypeErrorExpectedObject, "value is not a coroutine")
	}
	f, ok := priv.ValOrPtr.(*coroutine.Fiber)
	if !ok {
		return nil, except.New(except.TypeErrorExpectedObject, "value is not a coroutine")
	}
	return f, nil
}

// CoroutineNext/Throw/Return implement the three resume verbs spec §4.4
// names ("next/throw/return dispatch into a fiber the same way a
// generator object's matching method does"). The bool result reports
// whether the fiber has completed (the iterator-result "done" field).
func (e *Environment) CoroutineNext(v, arg value.Value) (value.Value, bool, error) {
	f, err := e.fiberOf(v)
	if err != nil {
		return value.Value(0), true, err
	}
	return f.Next(arg)
}

func (e *Environment) CoroutineThrow(v, arg value.Value) (value.Value, bool, error) {
	f, err := e.fiberOf(v)
	if err != nil {
		return value.Value(0), true, err
	}
	return f.Throw(arg)
}

func (e *Environment) CoroutineReturn(v, arg value.Value) (value.Value, bool, error) {
	f, err := e.fiberOf(v)
	if err != nil {
		return value.Value(0), true, err
	}
	return f.Return(arg)
}

// CoroutineKill implements the GC-reclaim path's counterpart for
// explicit teardown (e.g. the shadow surface's `wmain` exit handler
// killing every still-live fiber up front, spec §6 "torn down at
// exit").
func (e *Environment) CoroutineKill(v value.Value) error {
	f, err := e.fiberOf(v)
	if err != nil {
		return err
	}
	f.Kill()
	e.Coroutines.Untrack(f)
	return nil
}
