// Package apperr defines the stable error taxonomy returned across service
// and handler boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, small closed set of error categories. Handlers map Kind
// to an HTTP status; callers should branch on Kind via errors.As, never on
// Message text.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotReady        Kind = "not_ready"
	KindUpstream        Kind = "upstream_error"
	KindInsufficientData Kind = "insufficient_data"
	KindInternal        Kind = "internal_error"
)

// Error wraps an underlying cause with a Kind and a short, stable message
// that is safe to return to a client. Diagnostic detail belongs in Err and
// should be logged, not surfaced.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(k Kind, msg string, cause error) *Error {
	return &Error{Kind: k, Message: msg, Err: cause}
}

func Validation(msg string, cause error) *Error {
	return newErr(KindValidation, msg, cause)
}

func NotReady(msg string, cause error) *Error {
	return newErr(KindNotReady, msg, cause)
}

func Upstream(msg string, cause error) *Error {
	return newErr(KindUpstream, msg, cause)
}

func InsufficientData(msg string, cause error) *Error {
	return newErr(KindInsufficientData, msg, cause)
}

func Internal(msg string, cause error) *Error {
	return newErr(KindInternal, msg, cause)
}

// KindOf extracts the Kind of err if it is, or wraps, an *Error.
// Unrecognized errors are reported as KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
