package vm

import (
	"jsrt/object"
	"jsrt/value"
)

// ThrownValue is the JS-level exception a `throw expr` statement raises:
// an arbitrary value.Value propagated as an ordinary Go error up the
// call stack until a try handler catches it. Per spec §9 design note (a)
// this substitutes for setjmp/longjmp: the "unwind to nearest handler"
// behaviour falls out of Go's own (..., error) return propagation
// instead of an explicit jump.
type ThrownValue struct{ Val value.Value }

func (t *ThrownValue) Error() string { return "vm: uncaught thrown value" }

// TryHandler is one try record (spec §3 "Try handler"): it chains to its
// parent and snapshots the stack top at entry so Throw knows how far to
// unwind.
type TryHandler struct {
	prev     *TryHandler
	snapshot *StackLink
	throwVal value.Value // VUninitialized means "no pending exception"
}

// EnterTry implements `entertry`: allocates a handler linked to the
// current chain head and snapshots the stack.
func (e *Environment) EnterTry() *TryHandler {
	h := &TryHandler{prev: e.currentTry, snapshot: e.Stack.Top(), throwVal: value.VUninitialized}
	e.currentTry = h
	return h
}

// LeaveTry implements `leavetry`: pops the handler (which must be the
// current chain head) and returns its stored throw value, or
// VUninitialized if none was raised while it was active.
func (e *Environment) LeaveTry(h *TryHandler) value.Value {
	if e.currentTry == h {
		e.currentTry = h.prev
	}
	return h.throwVal
}

// Throw implements `throw` (spec §4.6 "Exceptions"): stores val on the
// nearest try handler, resets non-strict arguments/caller on every frame
// between here and that handler, restores the stack to the handler's
// snapshot, and returns a *ThrownValue for the caller to propagate. With
// no active handler the value still propagates, to be caught by the
// outermost entry-point try (spec §6 "wmain... sets up an outer try").
func (e *Environment) Throw(val value.Value) error {
	if val.IsDeleted() {
		val = value.VUndefined
	}
	if e.currentTry != nil {
		e.currentTry.throwVal = val
		e.unwindArguments(e.currentTry.snapshot)
		e.Stack.RestoreTo(e.currentTry.snapshot)
	}
	return &ThrownValue{Val: val}
}

// unwindArguments implements `js_throw_unwind`'s per-frame reset: every
// non-strict function frame between the current top and target gets its
// `arguments`/`caller` slots put back to null (spec §7 "Resource cleanup
// on throw"). Frame boundaries are flagged-pointer stack-link values
// (spec §4.6 "a flagged pointer value at a link marks the start of a
// call frame").
func (e *Environment) unwindArguments(target *StackLink) {
	for l := e.Stack.Top(); l != nil && l != target; l = l.Prev {
		if l.Val.Kind() != value.KindFlaggedPointer {
			continue
		}
		obj, ok := e.GC.Resolve(l.Val)
		if !ok {
			continue
		}
		fn, ok := obj.(*object.Function)
		if !ok {
			continue
		}
		e.resetArgumentsAndCaller(fn)
	}
}
