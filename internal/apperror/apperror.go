// Package apperror defines the application's error taxonomy.
//
// ERROR DESIGN:
// Every failure the auth core can produce falls into one of the sentinel
// categories below. Callers never inspect message text — they match with
// errors.Is (category) or errors.As (to pull out the user-safe message).
//
// The Message field of AppError is the ONLY text that may cross the
// presentation boundary. For ErrInternal and ErrCSRF the message is a
// fixed generic string; the real cause stays in the Err chain and is
// logged server-side only. This is how we guarantee no SQL text, file
// path, or stack detail ever reaches a response.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation — malformed username/password. Recoverable; the
	// message is safe to show to the user verbatim.
	ErrValidation = errors.New("validation error")

	// ErrUsernameTaken — registration hit an existing username, whether
	// found by the pre-check or raised by the store's UNIQUE constraint
	// at insert time.
	ErrUsernameTaken = errors.New("username taken")

	// ErrInvalidCredentials — login failed. Deliberately undifferentiated:
	// callers cannot (and must not) tell "no such user" from "wrong
	// password".
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrCSRF — the submitted anti-forgery token was absent or did not
	// match the session's bound token.
	ErrCSRF = errors.New("csrf mismatch")

	// ErrNotFound — a store lookup found no row. Internal to the service
	// layer; it never surfaces to the user as-is (login maps it to
	// ErrInvalidCredentials after the dummy verification).
	ErrNotFound = errors.New("not found")

	// ErrInternal — hashing or persistence failure. The user sees one
	// generic sentence; detail lives in the wrapped error for the log.
	ErrInternal = errors.New("internal error")
)

// AppError pairs a sentinel category with a user-safe message.
type AppError struct {
	Err     error  // sentinel category (and, for internal errors, the cause chain)
	Message string // pre-sanitized, user-facing text
	Field   string // optional: form field that caused a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ValidationFailed reports a malformed form field. The message is written
// for end users and is safe to render.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// UsernameTaken reports a registration conflict. The username itself is
// not echoed back — the form already displays what the user typed.
func UsernameTaken() *AppError {
	return &AppError{
		Err:     ErrUsernameTaken,
		Message: "That username is already taken.",
	}
}

// InvalidCredentials is returned for every failed login, regardless of
// which part of the credential was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid username or password.",
	}
}

// CSRFMismatch reports a failed anti-forgery check. The user message is
// generic; requester metadata is logged where the check runs.
func CSRFMismatch() *AppError {
	return &AppError{
		Err:     ErrCSRF,
		Message: "Your session has expired. Please try again.",
	}
}

// Internal wraps an unexpected failure. cause is kept in the chain for
// server-side logging but never rendered.
func Internal(cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrInternal, cause),
		Message: "Something went wrong. Please try again later.",
	}
}

// UserMessage extracts the pre-sanitized message for any error produced
// by this core. Unknown errors get the generic internal message, so a
// stray wrapped error can never leak detail through the boundary.
func UserMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Please try again later."
}
