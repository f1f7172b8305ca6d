package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/bigint"
	"jsrt/value"
)

// fakeOps is a minimal ObjectOps good enough to exercise ToPrimitive's
// non-object-reducing paths; object-reduction scenarios belong to the
// vm package's integration tests, which own a real object graph.
type fakeOps struct {
	strings map[value.Value]string
	bigints map[value.Value]bigint.Int
}

func newFakeOps() *fakeOps {
	return &fakeOps{strings: map[value.Value]string{}, bigints: map[value.Value]bigint.Int{}}
}

func (f *fakeOps) GetMethod(value.Value, string) (value.Value, error) { return value.VUndefined, nil }
func (f *fakeOps) Call(value.Value, value.Value, []value.Value) (value.Value, error) {
	return value.VUndefined, nil
}
func (f *fakeOps) StringOf(v value.Value) string       { return f.strings[v] }
func (f *fakeOps) BigintOf(v value.Value) bigint.Int   { return f.bigints[v] }
func (f *fakeOps) MakeString(s string) value.Value {
	v := value.Primitive(value.PrimString, uintptr(len(f.strings)+1))
	f.strings[v] = s
	return v
}

func TestToNumberSingletons(t *testing.T) {
	ops := newFakeOps()
	n, err := ToNumber(value.VUndefined, ops)
	require.NoError(t, err)
	assert.True(t, n != n, "ToNumber(undefined) must be NaN")

	n, err = ToNumber(value.VNull, ops)
	require.NoError(t, err)
	assert.Equal(t, float64(0), n)

	n, err = ToNumber(value.VTrue, ops)
	require.NoError(t, err)
	assert.Equal(t, float64(1), n)
}

func TestToNumberStringParsing(t *testing.T) {
	ops := newFakeOps()
	cases := map[string]float64{
		"  42  ":  42,
		"-3.5":    -3.5,
		"0x1F":    31,
		"0b101":   5,
		"0o17":    15,
		"Infinity": math.Inf(1), // compared loosely below
	}
	for s, want := range cases {
		v := ops.MakeString(s)
		got, err := ToNumber(v, ops)
		require.NoError(t, err)
		if s == "Infinity" {
			assert.True(t, got > 1e300)
			continue
		}
		assert.Equal(t, want, got, "parsing %q", s)
	}
}

func TestToNumberGarbageIsNaN(t *testing.T) {
	ops := newFakeOps()
	v := ops.MakeString("not a number")
	got, err := ToNumber(v, ops)
	require.NoError(t, err)
	assert.True(t, got != got)
}

func TestToNumberSymbolIsTypeError(t *testing.T) {
	ops := newFakeOps()
	sym := value.Primitive(value.PrimSymbol, 1)
	_, err := ToNumber(sym, ops)
	assert.Error(t, err)
}

func TestToStringNumberRoundTrip(t *testing.T) {
	ops := newFakeOps()
	s, err := ToString(value.Number(42), ops)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	back, err := ToNumber(ops.MakeString(s), ops)
	require.NoError(t, err)
	assert.Equal(t, float64(42), back)
}

func TestToStringFractional(t *testing.T) {
	ops := newFakeOps()
	s, err := ToString(value.Number(42.5), ops)
	require.NoError(t, err)
	assert.Equal(t, "42.5", s)

	back, err := ToNumber(ops.MakeString(s), ops)
	require.NoError(t, err)
	assert.Equal(t, 42.5, back)
}

func TestToStringSingletons(t *testing.T) {
	ops := newFakeOps()
	for v, want := range map[value.Value]string{
		value.VUndefined: "undefined",
		value.VNull:      "null",
		value.VTrue:      "true",
		value.VFalse:     "false",
	} {
		s, err := ToString(v, ops)
		require.NoError(t, err)
		assert.Equal(t, want, s)
	}
}
