// Package errors provides sentinel errors that can carry a wrapped
// cause, without giving up errors.Is matching against the sentinel.
package errors

import (
	stderr "errors"
	"fmt"
)

var _ error = New("")

// New creates a sentinel Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error is a sentinel error with an optional wrapped cause.
//
// Unlike fmt.Errorf("%w", ...), wrapping a cause does not replace the
// sentinel: Is(err, sentinel) keeps working on the wrapped value.
type Error struct {
	msg string
	err error
}

// Error message
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap the nested cause
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap returns a copy of the sentinel carrying err as its cause.
//
// The receiver is left untouched, so package-level sentinels may be
// wrapped concurrently.
func (e *Error) Wrap(err error) *Error {
	return &Error{msg: e.msg, err: err}
}

// Is reports whether e matches target, either directly or as a wrapped
// copy of the same sentinel
func (e *Error) Is(target error) bool {
	if e == target {
		return true
	}
	other, ok := target.(*Error)
	return ok && e.msg == other.msg
}

// As is a shortcut to the standard library errors.As
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is is a shortcut to the standard library errors.Is
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
