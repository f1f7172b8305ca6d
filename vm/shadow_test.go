package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/prop"
	"jsrt/value"
)

func TestShadowDebugPrintRendersArrayElements(t *testing.T) {
	e := newTestEnv(t)
	debugPrintFn, err := prop.GetProp(e.PropContext(), e.Shadow, e.Interner.InternString("debugPrint"), nil)
	require.NoError(t, err)

	arrVal := e.NewArr([]value.Value{e.InternString("a"), value.Number(1)})
	result, err := e.Call(debugPrintFn, value.VUndefined, []value.Value{arrVal})
	require.NoError(t, err)
	assert.Equal(t, "[ a, 1 ]", e.StringOf(result))
}

func TestShadowDebugPrintRendersObjectFields(t *testing.T) {
	e := newTestEnv(t)
	debugPrintFn, err := prop.GetProp(e.PropContext(), e.Shadow, e.Interner.InternString("debugPrint"), nil)
	require.NoError(t, err)

	objVal := e.NewObj(e.EmptyShape, nil)
	obj, ok := e.Resolve(objVal)
	require.True(t, ok)
	require.NoError(t, prop.SetProp(e.PropContext(), obj, e.Interner.InternString("x"), value.Number(5), nil))

	result, err := e.Call(debugPrintFn, value.VUndefined, []value.Value{objVal})
	require.NoError(t, err)
	assert.Equal(t, "{ x: 5 }", e.StringOf(result))
}
