// Package bigint implements arbitrary-precision signed integers (spec
// §4.4). The limb-level algorithms the spec describes at design level —
// schoolbook add/sub/mul, Knuth Algorithm D division, binary
// exponentiation, two's-complement bitwise ops — are exactly what the
// teacher's own math/big.Int already implements (see
// _examples/Go-zh-go.old/src/math/big/int.go: Add, Sub, Mul, Quo/Rem,
// Exp, And/Or/Xor, Lsh/Rsh). Rather than re-deriving those algorithms by
// hand, this package wraps math/big.Int and layers the spec's ownership,
// limb-count limit, and error-kind contract on top.
package bigint

import (
	"errors"
	"fmt"
	"math/big"
)

// MaxLimbs bounds a bigint's magnitude to 2^24 32-bit limbs (spec §4.4
// "Maximum length 2²⁴ limbs").
const MaxLimbs = 1 << 24

// ErrTooLarge is the RangeError(bigint_too_large) kind of spec §7,
// raised whenever an operation's result would exceed MaxLimbs.
var ErrTooLarge = errors.New("bigint_too_large")

// ErrInvalidArgument is the RangeError(invalid_argument) kind, raised by
// Pow on a negative exponent (spec §4.4 "Power... requires non-negative
// exponent").
var ErrInvalidArgument = errors.New("invalid_argument")

// ErrDivisionByZero is the RangeError(division_by_zero) kind.
var ErrDivisionByZero = errors.New("division_by_zero")

// ErrSyntax is the SyntaxError(invalid_argument) kind raised by FromString
// on unparsable input (spec §4.4, §7).
var ErrSyntax = errors.New("invalid bigint syntax")

// Int is an arbitrary-precision signed integer. The zero value is not
// usable; construct with Zero, FromInt64, or FromString.
type Int struct {
	v *big.Int
}

func wrap(v *big.Int) (Int, error) {
	if limbCount(v) > MaxLimbs {
		return Int{}, ErrTooLarge
	}
	return Int{v: v}, nil
}

func limbCount(v *big.Int) int {
	bits := v.BitLen()
	return (bits + 31) / 32
}

// Zero returns the bigint 0n.
func Zero() Int { return Int{v: new(big.Int)} }

// FromInt64 constructs a bigint from a native int64.
func FromInt64(x int64) Int { return Int{v: big.NewInt(x)} }

// FromLimbs constructs a bigint from a little-endian vector of 32-bit
// magnitude limbs; neg selects the sign. Callers holding two's-complement
// limbs decode the sign and magnitude themselves before calling.
func FromLimbs(limbs []uint32, neg bool) (Int, error) {
	if len(limbs) > MaxLimbs {
		return Int{}, ErrTooLarge
	}
	v := new(big.Int)
	for i := len(limbs) - 1; i >= 0; i-- {
		v.Lsh(v, 32)
		v.Or(v, new(big.Int).SetUint64(uint64(limbs[i])))
	}
	if neg {
		v.Neg(v)
	}
	return wrap(v)
}

// Limbs returns the little-endian 32-bit magnitude limbs and the sign.
func (x Int) Limbs() (limbs []uint32, neg bool) {
	mag := new(big.Int).Abs(x.v)
	limbs = make([]uint32, (mag.BitLen()+31)/32)
	low := new(big.Int).SetUint64(0xFFFFFFFF)
	for i := range limbs {
		limbs[i] = uint32(new(big.Int).And(mag, low).Uint64())
		mag.Rsh(mag, 32)
	}
	return limbs, x.v.Sign() < 0
}

// FromString parses a bigint literal in the given radix. Radix 0 uses
// math/big's base detection: a 0x/0o/0b prefix, a bare leading "0" for
// octal, otherwise decimal, with underscores allowed between digits.
func FromString(s string, radix int) (Int, error) {
	v, ok := new(big.Int).SetString(s, radix)
	if !ok {
		return Int{}, fmt.Errorf("%w: %q", ErrSyntax, s)
	}
	return wrap(v)
}

func (x Int) String() string { return x.v.String() }

// ToString formats x in the given radix (2..36), per BigInt.prototype.toString.
func (x Int) ToString(radix int) string { return x.v.Text(radix) }

func (x Int) Sign() int { return x.v.Sign() }

func (x Int) Cmp(y Int) int { return x.v.Cmp(y.v) }

func (x Int) Int64() int64 { return x.v.Int64() }

// Add implements bigint addition (spec "Add/subtract... single pass
// with 64-bit carry").
func Add(x, y Int) (Int, error) { return wrap(new(big.Int).Add(x.v, y.v)) }

// Sub implements bigint subtraction.
func Sub(x, y Int) (Int, error) { return wrap(new(big.Int).Sub(x.v, y.v)) }

// Mul implements the schoolbook O(n·m) multiply described in §4.4.
func Mul(x, y Int) (Int, error) { return wrap(new(big.Int).Mul(x.v, y.v)) }

// QuoRem implements the two division paths of §4.4 (single-limb long
// division, multi-limb Knuth Algorithm D): math/big.Int dispatches
// between equivalent algorithms internally. Truncating division;
// remainder sign follows the dividend, matching spec "Remainder sign
// follows dividend."
func QuoRem(x, y Int) (quo, rem Int, err error) {
	if y.Sign() == 0 {
		return Int{}, Int{}, ErrDivisionByZero
	}
	q := new(big.Int)
	r := new(big.Int)
	q.QuoRem(x.v, y.v, r)
	quo, err = wrap(q)
	if err != nil {
		return Int{}, Int{}, err
	}
	rem, err = wrap(r)
	return quo, rem, err
}

// Pow implements binary exponentiation, requiring a non-negative
// exponent (spec "Power... requires non-negative exponent").
func Pow(base, exp Int) (Int, error) {
	if exp.Sign() < 0 {
		return Int{}, ErrInvalidArgument
	}
	return wrap(new(big.Int).Exp(base.v, exp.v, nil))
}

// And, Or, Xor implement the two's-complement bitwise operators (spec
// "operate on two's-complement representation with sign extension of
// the shorter operand" — math/big.Int's And/Or/Xor already do this).
func And(x, y Int) (Int, error) { return wrap(new(big.Int).And(x.v, y.v)) }
func Or(x, y Int) (Int, error)  { return wrap(new(big.Int).Or(x.v, y.v)) }
func Xor(x, y Int) (Int, error) { return wrap(new(big.Int).Xor(x.v, y.v)) }
func Not(x Int) (Int, error)    { return wrap(new(big.Int).Not(x.v)) }

// Lsh implements left shift; a sufficiently large shift count that would
// push the result past MaxLimbs raises ErrTooLarge during allocation
// rather than silently truncating (spec testable boundary: "1n <<
// 1_000_000_000n -> RangeError(bigint_too_large) raised during
// allocation").
func Lsh(x Int, shift uint) (Int, error) {
	if shift/32 > MaxLimbs {
		return Int{}, ErrTooLarge
	}
	return wrap(new(big.Int).Lsh(x.v, shift))
}

// Rsh implements right shift; the high words sign-extend, matching
// math/big.Int.Rsh's two's-complement semantics for negative x.
func Rsh(x Int, shift uint) (Int, error) {
	return wrap(new(big.Int).Rsh(x.v, shift))
}

// AsIntN implements BigInt.asIntN(bits, x): wraps x into a signed bits-
// wide two's-complement integer. The `bits` argument is capped at
// MaxLimbs*32 (2^29), well below the 2^53-1 bound of ES; a larger bits
// value fails with ErrTooLarge.
func AsIntN(bits uint, x Int) (Int, error) {
	if bits == 0 {
		return Zero(), nil
	}
	if err := checkBits(bits); err != nil {
		return Int{}, err
	}
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	r := new(big.Int).Mod(x.v, mod)
	half := new(big.Int).Rsh(mod, 1)
	if r.Cmp(half) >= 0 {
		r.Sub(r, mod)
	}
	return wrap(r)
}

// AsUintN implements BigInt.asUintN(bits, x).
func AsUintN(bits uint, x Int) (Int, error) {
	if bits == 0 {
		return Zero(), nil
	}
	if err := checkBits(bits); err != nil {
		return Int{}, err
	}
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	r := new(big.Int).Mod(x.v, mod)
	return wrap(r)
}

func checkBits(bits uint) error {
	if bits > MaxLimbs*32 {
		return ErrTooLarge
	}
	return nil
}
