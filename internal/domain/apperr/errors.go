// Package apperr defines the error taxonomy shared by the approval core.
//
// Every error returned by the application services carries a Kind. Callers
// classify with errors.Is against the exported sentinels, or with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the calling layer
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindConflict           Kind = "CONFLICT"
	KindState              Kind = "STATE"
	KindAuthorization      Kind = "AUTHORIZATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	// KindPartialFailure means the primary write is committed but its audit
	// record is not. Callers must alert on it.
	KindPartialFailure Kind = "PARTIAL_FAILURE"
	KindInternal       Kind = "INTERNAL"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Sentinels for errors.Is matching
var (
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrState              = &Error{Kind: KindState}
	ErrAuthorization      = &Error{Kind: KindAuthorization}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable}
	ErrPartialFailure     = &Error{Kind: KindPartialFailure}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string

	// Detail carries the record that caused a conflict, if any
	Detail interface{}

	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation creates a validation error
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// Conflict creates a conflict error carrying the conflicting record
func Conflict(detail interface{}, format string, args ...interface{}) *Error {
	e := New(KindConflict, format, args...)
	e.Detail = detail
	return e
}

// State creates an illegal-state error
func State(format string, args ...interface{}) *Error {
	return New(KindState, format, args...)
}

// Unauthorized creates an authorization error
func Unauthorized(format string, args ...interface{}) *Error {
	return New(KindAuthorization, format, args...)
}

// NotFound creates a not-found error
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf returns the detail of the first *Error in err's chain
func DetailOf(err error) interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return nil
}
