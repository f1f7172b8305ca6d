package vm

import (
	"jsrt/value"
)

// PushStack / PopStack / StackTopLink implement the `growstack`/
// `stk_top` external API surface: thin exported wrappers letting
// compiled code manage temporaries on this Environment's value stack
// directly, without going through Call (spec §3 "Stack link... the
// environment's value stack").
func (e *Environment) PushStack(v value.Value) *StackLink { return e.Stack.Push(v) }

func (e *Environment) PopStack() value.Value { return e.Stack.Pop() }

func (e *Environment) StackTopLink() *StackLink { return e.Stack.Top() }

// SpreadArgs implements `spreadargs`: expands a single iterable argument
// (the operand of `...x` in a call expression) into zero or more
// individual arguments by driving its @@iterator to completion through
// NewIter and NextIter1.
func (e *Environment) SpreadArgs(iterable value.Value) ([]value.Value, error) {
	rec, err := e.NewIter(iterable)
	if err != nil {
		return nil, err
	}
	var out []value.Value
	for {
		v, done, err := e.NextIter1(rec, value.VUndefined)
		if err != nil {
			return nil, err
		}
		if done {
			return out, nil
		}
		out = append(out, v)
	}
}
