package bigint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	for _, radix := range []int{2, 10, 16, 36} {
		x, err := FromString("123456789012345678901234567890", 10)
		require.NoError(t, err)
		s := x.ToString(radix)
		y, err := FromString(s, radix)
		require.NoError(t, err)
		assert.Equal(t, 0, x.Cmp(y))
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := FromString("not-a-number", 10)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestDivisionIdentity(t *testing.T) {
	// (1e21 / 7) * 7 + (1e21 % 7) == 1e21, spec §8 scenario 4.
	x, err := FromString("1000000000000000000000", 10)
	require.NoError(t, err)
	seven := FromInt64(7)

	quo, rem, err := QuoRem(x, seven)
	require.NoError(t, err)

	prod, err := Mul(quo, seven)
	require.NoError(t, err)
	total, err := Add(prod, rem)
	require.NoError(t, err)

	assert.Equal(t, 0, x.Cmp(total))
}

func TestDivisionByZero(t *testing.T) {
	_, _, err := QuoRem(FromInt64(1), Zero())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestPowRejectsNegativeExponent(t *testing.T) {
	_, err := Pow(FromInt64(2), FromInt64(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPowBinaryExponentiation(t *testing.T) {
	r, err := Pow(FromInt64(2), FromInt64(10))
	require.NoError(t, err)
	assert.Equal(t, int64(1024), r.Int64())
}

func TestLshTooLargeIsRangeError(t *testing.T) {
	_, err := Lsh(FromInt64(1), 1_000_000_000)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestAsIntNWrapsToSigned(t *testing.T) {
	r, err := AsIntN(8, FromInt64(200))
	require.NoError(t, err)
	assert.Equal(t, int64(-56), r.Int64())
}

func TestAsUintNWrapsToUnsigned(t *testing.T) {
	r, err := AsUintN(8, FromInt64(-1))
	require.NoError(t, err)
	assert.Equal(t, int64(255), r.Int64())
}

func TestBitwiseOps(t *testing.T) {
	a := FromInt64(0b1100)
	b := FromInt64(0b1010)
	and, err := And(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(0b1000), and.Int64())

	or, err := Or(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(0b1110), or.Int64())

	xor, err := Xor(a, b)
	require.NoError(t, err)
	assert.Equal(t, int64(0b0110), xor.Int64())
}

func TestLimbsRoundTrip(t *testing.T) {
	x, err := FromString("18446744073709551616", 10) // 2^64
	require.NoError(t, err)
	limbs, neg := x.Limbs()
	assert.False(t, neg)
	y, err := FromLimbs(limbs, neg)
	require.NoError(t, err)
	assert.Equal(t, 0, x.Cmp(y))
}
