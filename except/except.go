// Package except implements the error-kind taxonomy of spec §7. Core
// operations never return a raw Go error from a user-facing mistake;
// they construct an *Exception carrying one of these Kinds, which a
// `try` (package vm) can catch by kind the way the source's shadow
// helpers would be invoked by name.
//
// Per spec §9 design note (a), this is the "native result-returning
// error propagation discipline" alternative to setjmp/longjmp: every
// call site that can fail returns (..., error), and package vm's
// try/throw machinery is what gives that error the "unwind to nearest
// handler" behaviour the source gets from longjmp.
package except

import "fmt"

// Kind names one of the taxonomy entries in spec §7. Values are grouped
// by the JS error constructor a higher layer would use to surface them.
type Kind string

const (
	TypeErrorExpectedFunction    Kind = "TypeError_expected_function"
	TypeErrorExpectedObject      Kind = "TypeError_expected_object"
	TypeErrorExpectedConstructor Kind = "TypeError_expected_constructor"
	TypeErrorExpectedNumber      Kind = "TypeError_expected_number"
	TypeErrorExpectedBigint      Kind = "TypeError_expected_bigint"

	TypeErrorConvertNullToObject      Kind = "TypeError_convert_null_to_object"
	TypeErrorConvertSymbolToString    Kind = "TypeError_convert_symbol_to_string"
	TypeErrorConvertObjectToPrimitive Kind = "TypeError_convert_object_to_primitive"
	TypeErrorConvertSymbolToNumber    Kind = "TypeError_convert_symbol_to_number"
	TypeErrorConvertBigintToNumber    Kind = "TypeError_convert_bigint_to_number"

	TypeErrorReadOnlyProperty      Kind = "TypeError_readOnlyProperty"
	TypeErrorPrimitiveProperty     Kind = "TypeError_primitiveProperty"
	TypeErrorObjectNotExtensible   Kind = "TypeError_object_not_extensible"
	TypeErrorInvalidPrototype      Kind = "TypeError_invalid_prototype"
	TypeErrorCyclicPrototype       Kind = "TypeError_cyclicPrototype"
	TypeErrorSetPropertyOfNull     Kind = "TypeError_set_property_of_null_object"
	TypeErrorIncompatibleObject    Kind = "TypeError_incompatible_object"
	TypeErrorCoroutineAlreadyResumed Kind = "TypeError_coroutine_already_resumed"

	TypeErrorIteratorResult     Kind = "TypeError_iterator_result"
	TypeErrorNotIterable        Kind = "TypeError_not_iterable"
	TypeErrorIteratorCannotCall Kind = "TypeError_iterator_cannot_call"
	TypeErrorUnsupportedOp      Kind = "TypeError_unsupported_operation"

	TypeErrorDefinePropertyDescriptor  Kind = "TypeError_defineProperty_descriptor"
	TypeErrorDefinePropertyDescriptor3 Kind = "TypeError_defineProperty_descriptor_3"
	TypeErrorDefinePropertyDescriptor4 Kind = "TypeError_defineProperty_descriptor_4"
	TypeErrorDefinePropertyDescriptor5 Kind = "TypeError_defineProperty_descriptor_5"

	ReferenceErrorNotDefined          Kind = "ReferenceError_not_defined"
	ReferenceErrorUninitializedVar    Kind = "ReferenceError_uninitialized_variable"

	RangeErrorArrayLength     Kind = "RangeError_array_length"
	RangeErrorBigintTooLarge  Kind = "RangeError_bigint_too_large"
	RangeErrorDivisionByZero  Kind = "RangeError_division_by_zero"
	RangeErrorInvalidArgument Kind = "RangeError_invalid_argument"
	RangeErrorPropertyCount   Kind = "RangeError_property_count"

	SyntaxErrorInvalidArgument Kind = "SyntaxError_invalid_argument"
)

// Exception is the error type every fallible core operation returns
// instead of throwing. vm.Throw wraps one into the current try chain;
// an Exception that escapes every handler reaches wmain's outer try
// (spec §4.6 "leavetry") and gets stringified there.
type Exception struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, format string, args ...interface{}) *Exception {
	return &Exception{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error) *Exception {
	return &Exception{Kind: kind, Message: cause.Error(), Cause: cause}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Exception) Unwrap() error { return e.Cause }

// Is reports whether err, or an error it wraps, is an *Exception of kind
// k: callers write kind.Is(err) to check "did this fail with
// TypeError_not_iterable" without constructing a whole Exception to
// compare against.
func (k Kind) Is(err error) bool {
	var exc *Exception
	return AsKind(err, &exc) && exc.Kind == k
}

// AsKind is a small errors.As helper kept local to avoid importing
// "errors" at every call site just for this one cast.
func AsKind(err error, target **Exception) bool {
	for err != nil {
		if e, ok := err.(*Exception); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
