// Package iterator implements the for-in/for-of enumeration machinery
// and the @@iterator protocol of spec §4 (new_iter/next_iter1/
// next_iter2), layered on top of the property protocol's get_prop and
// the call machinery supplied by package vm.
package iterator

import (
	"jsrt/except"
	"jsrt/intern"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/value"
)

// Resolver recovers the object.Object behind an object-reference
// value.Value, the same seam package gc's Collector fills for every
// other package that needs to dereference a managed value.
type Resolver interface {
	Resolve(v value.Value) (object.Object, bool)
}

// Record is the ES "iterator record": the iterator object, its bound
// next method, and whether it has already reported completion.
type Record struct {
	IterObj value.Value
	NextFn  value.Value
	Done    bool
}

// NewIter implements `new_iter`: looks up @@iterator on obj, invokes it,
// and wraps the resulting iterator object's `next` method into a Record.
func NewIter(ctx *prop.Context, res Resolver, obj value.Value) (*Record, error) {
	receiver, ok := res.Resolve(obj)
	if !ok {
		return nil, except.New(except.TypeErrorNotIterable, "value is not iterable")
	}
	iterKey := ctx.Interner.InternString("@@iterator")
	method, err := prop.GetProp(ctx, receiver, iterKey, nil)
	if err != nil {
		return nil, err
	}
	if method.IsUndefined() {
		return nil, except.New(except.TypeErrorNotIterable, "value has no @@iterator method")
	}
	iterObj, err := ctx.Caller.Call(method, obj, nil)
	if err != nil {
		return nil, err
	}
	iterReceiver, ok := res.Resolve(iterObj)
	if !ok {
		return nil, except.New(except.TypeErrorIteratorResult, "@@iterator must return an object")
	}
	nextFn, err := prop.GetProp(ctx, iterReceiver, ctx.Interner.InternString("next"), nil)
	if err != nil {
		return nil, err
	}
	return &Record{IterObj: iterObj, NextFn: nextFn}, nil
}

// NextIter1 implements `next_iter1`: drives one step of a Record and
// returns its single yielded value, matching the ordinary for-of shape.
func NextIter1(ctx *prop.Context, res Resolver, rec *Record, arg value.Value) (value.Value, bool, error) {
	if rec.Done {
		return value.VUndefined, true, nil
	}
	result, err := ctx.Caller.Call(rec.NextFn, rec.IterObj, []value.Value{arg})
	if err != nil {
		rec.Done = true
		return value.Value(0), true, err
	}
	resultObj, ok := res.Resolve(result)
	if !ok {
		rec.Done = true
		return value.Value(0), true, except.New(except.TypeErrorIteratorResult, "iterator result must be an object")
	}
	doneVal, err := prop.GetProp(ctx, resultObj, ctx.Interner.InternString("done"), nil)
	if err != nil {
		return value.Value(0), true, err
	}
	v, err := prop.GetProp(ctx, resultObj, ctx.Interner.InternString("value"), nil)
	if err != nil {
		return value.Value(0), true, err
	}
	if doneVal.IsTruthy() {
		rec.Done = true
		return v, true, nil
	}
	return v, false, nil
}

// NextIter2 implements `next_iter2`: drives one step and destructures
// the yielded value as a two-element [key, value] pair, the shape
// Map/Set-style entries iterators and destructuring for-of loops need.
func NextIter2(ctx *prop.Context, res Resolver, rec *Record, arg value.Value) (key, val value.Value, done bool, err error) {
	v, done, err := NextIter1(ctx, res, rec, arg)
	if err != nil || done {
		return value.VUndefined, value.VUndefined, done, err
	}
	pairObj, ok := res.Resolve(v)
	if !ok {
		return value.Value(0), value.Value(0), true, except.New(except.TypeErrorIteratorResult, "destructured iterator result must be an object")
	}
	key, err = prop.GetProp(ctx, pairObj, ctx.Interner.InternString("0"), nil)
	if err != nil {
		return value.Value(0), value.Value(0), true, err
	}
	val, err = prop.GetProp(ctx, pairObj, ctx.Interner.InternString("1"), nil)
	if err != nil {
		return value.Value(0), value.Value(0), true, err
	}
	return key, val, false, nil
}

// Close implements ES IteratorClose: called when a for-of loop exits
// early (break, return, or an uncaught exception in the loop body) so
// the iterator gets a chance to run its own cleanup.
func Close(ctx *prop.Context, res Resolver, rec *Record) error {
	if rec.Done {
		return nil
	}
	iterReceiver, ok := res.Resolve(rec.IterObj)
	if !ok {
		return nil
	}
	returnFn, err := prop.GetProp(ctx, iterReceiver, ctx.Interner.InternString("return"), nil)
	if err != nil {
		return err
	}
	if returnFn.IsUndefined() {
		return nil
	}
	_, err = ctx.Caller.Call(returnFn, rec.IterObj, nil)
	return err
}

// ForInKeys implements the for-in enumeration order: own-then-inherited
// enumerable string keys, each reported at most once (a key shadowed on
// a closer object in the chain is never revisited further up it).
func ForInKeys(obj object.Object) []*intern.Ident {
	seen := make(map[*intern.Ident]bool)
	var out []*intern.Ident
	for cur := obj; cur != nil; cur = cur.Hdr().Proto {
		sh := cur.Hdr().Shape
		if sh == nil {
			continue
		}
		for _, k := range sh.Keys() {
			if seen[k] || k.Subtype != intern.SubtypeString {
				continue
			}
			seen[k] = true
			entry, ok := sh.Lookup(k)
			if !ok || !entry.IsSlot {
				continue
			}
			raw := cur.Hdr().Values[entry.SlotIndex]
			if raw.IsDeleted() {
				continue
			}
			enumerable := true
			if raw.Kind() == value.KindFlaggedPointer {
				d, ok := prop.Unbox(raw)
				if !ok {
					continue
				}
				enumerable = d.Enumerable
			}
			if enumerable {
				out = append(out, k)
			}
		}
	}
	return out
}
