// Package apperr defines the error kinds surfaced to users and how they are
// matched. Services return errors built with New so that handlers can pick a
// response from the kind and show Error() verbatim as the notice text.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks form input that failed validation
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a request without an authenticated session
	ErrUnauthorized = errors.New("authentication required")

	// ErrForbidden marks an authenticated request lacking the role or ownership
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks a missing entity
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation (username, email, feedback, registration)
	ErrConflict = errors.New("conflict")

	// ErrInvalidPayload marks malformed scanned QR data
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotRegistered marks a user without a registration for the event
	ErrNotRegistered = errors.New("not registered")

	// ErrPrecondition marks an operation attempted at the wrong time, e.g. feedback before the event
	ErrPrecondition = errors.New("precondition failed")
)

// Error is a user-facing error of a given kind.
type Error struct {
	Kind    error
	Message string
}

// New returns an error of the given kind whose Error() is msg.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Message returns the user-facing text carried by err, or fallback when err
// does not wrap an *Error.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		return fieldErrs.Error()
	}
	return fallback
}

// FieldErrors maps form field names to inline error messages.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error {
	return ErrValidation
}

// Is reports whether err is of the given kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
