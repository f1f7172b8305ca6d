package iterator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/intern"
	"jsrt/object"
	"jsrt/prop"
	"jsrt/shape"
	"jsrt/value"
)

// testKeys interns every key the tests use, and is also the Interner the
// iterator protocol sees, so the same text always yields the same Ident
// pointer, as shapes require.
var testKeys = intern.NewSet()

func key(s string) *intern.Ident { return testKeys.InternString(s) }

// fakeResolver is a trivial value.Value->object.Object table standing in
// for a collector's registry.
type fakeResolver map[value.Value]object.Object

func (r fakeResolver) Resolve(v value.Value) (object.Object, bool) {
	o, ok := r[v]
	return o, ok
}

// fakeCaller dispatches on function identity; `next`-shaped functions pop
// one value off a queue per call so repeated invocation drives a sequence.
type fakeCaller struct {
	fixed map[value.Value]value.Value
	queue map[value.Value][]value.Value
	calls []value.Value
}

func (c *fakeCaller) Call(fn, this value.Value, args []value.Value) (value.Value, error) {
	c.calls = append(c.calls, fn)
	if q, ok := c.queue[fn]; ok && len(q) > 0 {
		v := q[0]
		c.queue[fn] = q[1:]
		return v, nil
	}
	return c.fixed[fn], nil
}

func newObj(proto object.Object) *object.Ordinary { return object.NewOrdinary(proto, shape.Root()) }

func TestNewIterAndNextIter1DrivesToCompletion(t *testing.T) {
	iterMethod := value.Object(100)
	nextFn := value.Object(101)
	iterObjVal := value.Object(102)
	result1 := value.Object(103)
	result2 := value.Object(104)

	iterable := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, iterable, key("@@iterator"), iterMethod, nil))

	iterObj := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, iterObj, key("next"), nextFn, nil))

	res1 := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, res1, key("done"), value.Bool(false), nil))
	require.NoError(t, prop.SetProp(&prop.Context{}, res1, key("value"), value.Number(1), nil))

	res2 := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, res2, key("done"), value.Bool(true), nil))
	require.NoError(t, prop.SetProp(&prop.Context{}, res2, key("value"), value.Number(99), nil))

	res := fakeResolver{
		value.Object(1): iterable,
		iterObjVal:      iterObj,
		result1:         res1,
		result2:         res2,
	}
	caller := &fakeCaller{
		fixed: map[value.Value]value.Value{iterMethod: iterObjVal},
		queue: map[value.Value][]value.Value{nextFn: {result1, result2}},
	}
	ctx := &prop.Context{Caller: caller, Interner: testKeys}

	rec, err := NewIter(ctx, res, value.Object(1))
	require.NoError(t, err)

	v, done, err := NextIter1(ctx, res, rec, value.VUndefined)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, float64(1), v.Float64())

	v, done, err = NextIter1(ctx, res, rec, value.VUndefined)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, float64(99), v.Float64())

	// Once done, the record short-circuits without another call.
	callsBefore := len(caller.calls)
	v, done, err = NextIter1(ctx, res, rec, value.VUndefined)
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, v.IsUndefined())
	assert.Equal(t, callsBefore, len(caller.calls))
}

func TestNewIterRejectsNonIterable(t *testing.T) {
	iterable := newObj(nil)
	res := fakeResolver{value.Object(1): iterable}
	ctx := &prop.Context{Caller: &fakeCaller{fixed: map[value.Value]value.Value{}}, Interner: testKeys}

	_, err := NewIter(ctx, res, value.Object(1))
	assert.Error(t, err)
}

func TestNextIter2DestructuresKeyValuePairs(t *testing.T) {
	nextFn := value.Object(200)
	pairVal := value.Object(201)

	pair := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, pair, key("0"), value.Number(7), nil))
	require.NoError(t, prop.SetProp(&prop.Context{}, pair, key("1"), value.Number(8), nil))

	resultVal := value.Object(202)
	result := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, result, key("done"), value.Bool(false), nil))
	require.NoError(t, prop.SetProp(&prop.Context{}, result, key("value"), pairVal, nil))

	res := fakeResolver{resultVal: result, pairVal: pair}
	caller := &fakeCaller{queue: map[value.Value][]value.Value{nextFn: {resultVal}}}
	ctx := &prop.Context{Caller: caller, Interner: testKeys}

	rec := &Record{NextFn: nextFn}
	k, v, done, err := NextIter2(ctx, res, rec, value.VUndefined)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, float64(7), k.Float64())
	assert.Equal(t, float64(8), v.Float64())
}

func TestCloseCallsReturnMethodOnce(t *testing.T) {
	returnFn := value.Object(300)
	iterObjVal := value.Object(301)

	iterObj := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, iterObj, key("return"), returnFn, nil))

	res := fakeResolver{iterObjVal: iterObj}
	caller := &fakeCaller{fixed: map[value.Value]value.Value{}}
	ctx := &prop.Context{Caller: caller, Interner: testKeys}

	rec := &Record{IterObj: iterObjVal}
	require.NoError(t, Close(ctx, res, rec))
	assert.Contains(t, caller.calls, returnFn)

	rec.Done = true
	callsBefore := len(caller.calls)
	require.NoError(t, Close(ctx, res, rec))
	assert.Equal(t, callsBefore, len(caller.calls), "a done record must not invoke return again")
}

func TestForInKeysSkipsShadowedAndNonEnumerable(t *testing.T) {
	proto := newObj(nil)
	require.NoError(t, prop.SetProp(&prop.Context{}, proto, key("shared"), value.Number(1), nil))

	child := newObj(proto)
	require.NoError(t, prop.SetProp(&prop.Context{}, child, key("own"), value.Number(2), nil))
	require.NoError(t, prop.DefineProperty(child, key("shared"), &prop.Descriptor{
		Value: value.Number(3), Writable: true, Enumerable: false, Configurable: true,
	}))

	keys := ForInKeys(child)
	var names []string
	for _, k := range keys {
		names = append(names, k.String())
	}
	assert.ElementsMatch(t, []string{"own"}, names)
}
