package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/value"
)

func newTestEnv(t *testing.T) *Environment {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GCThreshold = 8
	e := New(cfg, nil)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e
}

func TestNewBootstrapsPrototypeChain(t *testing.T) {
	e := newTestEnv(t)
	objProto := e.Prototype("Object")
	arrProto := e.Prototype("Array")
	require.NotNil(t, objProto)
	require.NotNil(t, arrProto)
	assert.Same(t, objProto, arrProto.Hdr().Proto)
	assert.Nil(t, objProto.Hdr().Proto)
}

func TestInternStringRoundTrips(t *testing.T) {
	e := newTestEnv(t)
	v1 := e.InternString("hello")
	v2 := e.InternString("hello")
	assert.Equal(t, v1, v2, "interning the same text twice must recover the same primitive")

	id, ok := e.IdentOf(v1)
	require.True(t, ok)
	assert.Equal(t, "hello", id.String())
}

func TestMakeStringIsTransientAndDistinct(t *testing.T) {
	e := newTestEnv(t)
	v1 := e.MakeString("x")
	v2 := e.MakeString("x")
	assert.NotEqual(t, v1, v2, "MakeString must not intern")
	assert.Equal(t, "x", e.StringOf(v1))
}

func TestMakeSymbolRecoversWellKnownSymbols(t *testing.T) {
	e := newTestEnv(t)
	v := e.MakeSymbol("@@iterator")
	assert.Equal(t, e.WellKnown["@@iterator"], v)
}

func TestMakeBigintRoundTrips(t *testing.T) {
	e := newTestEnv(t)
	b, err := e.NewBig([]uint32{42}, false)
	require.NoError(t, err)
	assert.True(t, b.IsPrimitiveBigint())
	got := e.BigintOf(b)
	assert.Equal(t, int64(42), got.Int64())
}

func TestScanRootsIncludesGlobalAndShadow(t *testing.T) {
	e := newTestEnv(t)
	roots := e.ScanRoots()
	assert.Contains(t, roots, e.Global.Self)
	assert.Contains(t, roots, e.Shadow.Self)
}

func TestScanRootsIncludesPendingThrowValue(t *testing.T) {
	e := newTestEnv(t)
	h := e.EnterTry()
	v := e.InternString("boom")
	h.throwVal = v
	roots := e.ScanRoots()
	assert.Contains(t, roots, v)
	e.LeaveTry(h)
}

func TestNewObjAndNewArrAreManaged(t *testing.T) {
	e := newTestEnv(t)
	objVal := e.NewObj(e.EmptyShape, nil)
	obj, ok := e.Resolve(objVal)
	require.True(t, ok)
	assert.NotNil(t, obj)

	arrVal := e.NewArr([]value.Value{e.InternString("a"), e.InternString("b")})
	arrObj, ok := e.Resolve(arrVal)
	require.True(t, ok)
	assert.NotNil(t, arrObj)
}
