package vm

import (
	"jsrt/iterator"
	"jsrt/object"
	"jsrt/value"
)

// NewIter, NextIter1, NextIter2, CloseIter implement the `new_iter`/
// `next_iter1`/`next_iter2` external API (spec §4 "for-of/for-in
// enumeration"): thin wrappers binding package iterator's free
// functions to this Environment's own PropContext/Resolve.
func (e *Environment) NewIter(obj value.Value) (*iterator.Record, error) {
	return iterator.NewIter(e.PropContext(), e, obj)
}

func (e *Environment) NextIter1(rec *iterator.Record, arg value.Value) (value.Value, bool, error) {
	return iterator.NextIter1(e.PropContext(), e, rec, arg)
}

func (e *Environment) NextIter2(rec *iterator.Record, arg value.Value) (key, val value.Value, done bool, err error) {
	return iterator.NextIter2(e.PropContext(), e, rec, arg)
}

func (e *Environment) CloseIter(rec *iterator.Record) error {
	return iterator.Close(e.PropContext(), e, rec)
}

// ForInKeys implements `for_in_keys`.
func (e *Environment) ForInKeys(obj object.Object) []value.Value {
	idents := iterator.ForInKeys(obj)
	out := make([]value.Value, len(idents))
	for i, id := range idents {
		out[i] = e.prims.mintIdent(e.Interner.Intern(id))
	}
	return out
}
