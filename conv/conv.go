// Package conv implements the ToPrimitive/ToNumber/ToString coercions of
// spec §4.1. Reducing an object requires calling back into the property
// protocol and the call machinery (to fetch and invoke @@toPrimitive,
// valueOf, toString) — both of which sit above this package in the
// dependency graph — so conv takes an ObjectOps implementation rather
// than importing them directly, which keeps it independent of the
// packages that drive it.
package conv

import (
	"math"
	"strconv"
	"strings"

	"jsrt/bigint"
	"jsrt/except"
	"jsrt/value"
)

// Hint selects the ToPrimitive algorithm variant (spec §4.1).
type Hint uint8

const (
	HintDefault Hint = iota
	HintNumber
	HintString
)

// ObjectOps is the minimal call-back surface ToPrimitive needs from the
// property/call layer, supplied by package vm at Environment
// construction time.
type ObjectOps interface {
	// GetMethod returns the named own-or-inherited property of obj if it
	// is callable, or value.VUndefined otherwise.
	GetMethod(obj value.Value, name string) (value.Value, error)
	// Call invokes fn with the given this and arguments.
	Call(fn value.Value, this value.Value, args []value.Value) (value.Value, error)
	// StringOf / BigintOf extract the payload of a primitive reference
	// for formatting purposes.
	StringOf(v value.Value) string
	BigintOf(v value.Value) bigint.Int
	// MakeString mints a (possibly transient) string primitive, used to
	// build the hint-name argument passed to @@toPrimitive.
	MakeString(s string) value.Value
}

// ToPrimitive implements the ES "ordinary toPrimitive" algorithm (spec
// §4.1). Non-object values pass through unchanged.
func ToPrimitive(v value.Value, hint Hint, ops ObjectOps) (value.Value, error) {
	if !v.IsObject() {
		return v, nil
	}

	if sym, err := ops.GetMethod(v, "@@toPrimitive"); err != nil {
		return value.Value(0), err
	} else if !sym.IsUndefined() {
		hintStr := "default"
		switch hint {
		case HintNumber:
			hintStr = "number"
		case HintString:
			hintStr = "string"
		}
		result, err := ops.Call(sym, v, []value.Value{stringValue(hintStr, ops)})
		if err != nil {
			return value.Value(0), err
		}
		if result.IsObject() {
			return value.Value(0), except.New(except.TypeErrorConvertObjectToPrimitive, "@@toPrimitive returned an object")
		}
		return result, nil
	}

	methods := []string{"valueOf", "toString"}
	if hint == HintString {
		methods = []string{"toString", "valueOf"}
	}
	for _, name := range methods {
		m, err := ops.GetMethod(v, name)
		if err != nil {
			return value.Value(0), err
		}
		if m.IsUndefined() {
			continue
		}
		result, err := ops.Call(m, v, nil)
		if err != nil {
			return value.Value(0), err
		}
		if !result.IsObject() {
			return result, nil
		}
	}
	return value.Value(0), except.New(except.TypeErrorConvertObjectToPrimitive, "cannot convert object to primitive")
}

// ToNumber implements spec §4.1 `to_number`.
func ToNumber(v value.Value, ops ObjectOps) (float64, error) {
	if v.IsObject() {
		prim, err := ToPrimitive(v, HintNumber, ops)
		if err != nil {
			return 0, err
		}
		return ToNumber(prim, ops)
	}
	if v.IsNumber() {
		return v.Float64(), nil
	}
	if s, ok := v.IsSingleton(); ok {
		switch s {
		case value.Undefined:
			return math.NaN(), nil
		case value.Null, value.False:
			return 0, nil
		case value.True:
			return 1, nil
		}
	}
	if v.IsPrimitiveSymbol() {
		return 0, except.New(except.TypeErrorConvertSymbolToNumber, "cannot convert a Symbol to a number")
	}
	if v.IsPrimitiveBigint() {
		return 0, except.New(except.TypeErrorConvertBigintToNumber, "cannot convert a BigInt to a number")
	}
	if v.IsPrimitiveString() {
		return parseNumericString(ops.StringOf(v)), nil
	}
	return math.NaN(), nil
}

// parseNumericString implements the grammar spec §4.1 describes: an
// optional sign and Infinity; a 0x/0o/0b prefix with digits; or a
// decimal with optional fraction/exponent; trailing whitespace only.
// Anything else parses as NaN.
func parseNumericString(s string) float64 {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0
	}
	sign := 1.0
	rest := t
	switch {
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	case strings.HasPrefix(rest, "-"):
		sign = -1
		rest = rest[1:]
	}
	if rest == "Infinity" {
		return sign * math.Inf(1)
	}
	lower := strings.ToLower(rest)
	switch {
	case strings.HasPrefix(lower, "0x"):
		n, err := strconv.ParseUint(rest[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return sign * float64(n)
	case strings.HasPrefix(lower, "0o"):
		n, err := strconv.ParseUint(rest[2:], 8, 64)
		if err != nil {
			return math.NaN()
		}
		return sign * float64(n)
	case strings.HasPrefix(lower, "0b"):
		n, err := strconv.ParseUint(rest[2:], 2, 64)
		if err != nil {
			return math.NaN()
		}
		return sign * float64(n)
	}
	if rest == "" || (rest[0] != '.' && (rest[0] < '0' || rest[0] > '9')) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return math.NaN()
	}
	return sign * f
}

// ToString implements spec §4.1 `to_string`. Number formatting follows
// the three-way split the spec calls out (exact-integer, finite-with-
// fraction, exponential) with strconv.FormatFloat's shortest round-trip
// digits: exponential form only below 1e-6 or from 1e21 up, plain
// decimal otherwise; bigint uses bigint.Int.ToString(10) per §4.4.
func ToString(v value.Value, ops ObjectOps) (string, error) {
	if v.IsObject() {
		prim, err := ToPrimitive(v, HintString, ops)
		if err != nil {
			return "", err
		}
		return ToString(prim, ops)
	}
	if v.IsNumber() {
		return formatNumber(v.Float64()), nil
	}
	if s, ok := v.IsSingleton(); ok {
		switch s {
		case value.Undefined:
			return "undefined", nil
		case value.Null:
			return "null", nil
		case value.True:
			return "true", nil
		case value.False:
			return "false", nil
		}
	}
	if v.IsPrimitiveSymbol() {
		return "", except.New(except.TypeErrorConvertSymbolToString, "cannot convert a Symbol to a string")
	}
	if v.IsPrimitiveBigint() {
		return ops.BigintOf(v).ToString(10), nil
	}
	if v.IsPrimitiveString() {
		return ops.StringOf(v), nil
	}
	return "", nil
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		abs := math.Abs(f)
		if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
			return strconv.FormatFloat(f, 'e', -1, 64)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

func stringValue(s string, ops ObjectOps) value.Value { return ops.MakeString(s) }
