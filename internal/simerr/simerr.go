// Package simerr holds the error taxonomy shared by the circuit model, the
// engine and the request boundary.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies a simulation failure.
type Kind int

const (
	// Validation marks a malformed circuit or request.
	Validation Kind = iota + 1
	// ResourceLimit marks a qubit or shot count above the configured bound.
	ResourceLimit
	// Internal marks a broken engine invariant. These are bugs, not user errors.
	Internal
)

// Wire codes reported alongside error messages.
const (
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeResourceLimit    = "RESOURCE_LIMIT"
	CodeInternalError    = "INTERNAL_ERROR"
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case ResourceLimit:
		return "resource_limit"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is a classified simulation error.
type Error struct {
	Kind Kind
	Op   string // operation or field that failed, e.g. "gates[2]"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf returns a validation error for op.
func Validationf(op, format string, args ...any) error {
	return &Error{Kind: Validation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ResourceLimitf returns a resource limit error for op.
func ResourceLimitf(op, format string, args ...any) error {
	return &Error{Kind: ResourceLimit, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Internalf returns an internal invariant error wrapping cause (may be nil).
func Internalf(cause error, op, format string, args ...any) error {
	return &Error{Kind: Internal, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf reports the kind of err, or 0 if err is not a classified error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func IsValidation(err error) bool    { return KindOf(err) == Validation }
func IsResourceLimit(err error) bool { return KindOf(err) == ResourceLimit }
func IsInternal(err error) bool      { return KindOf(err) == Internal }

// Code maps err to its wire code. Unclassified errors are reported as internal.
func Code(err error) string {
	switch KindOf(err) {
	case Validation:
		return CodeValidationFailed
	case ResourceLimit:
		return CodeResourceLimit
	default:
		return CodeInternalError
	}
}
