// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values (directly or wrapped) so transports can map a
// stable code to a status and a client-visible errorCode without inspecting
// messages. Stores return sentinel errors instead; see pkg/platform/sentinel.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine readable error classification.
type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeConflict           Code = "conflict"
	CodeDuplicateRole      Code = "duplicate_role"
	CodeNotFound           Code = "not_found"
	CodeInvalidToken       Code = "invalid_token"
	CodeTokenExpired       Code = "token_expired"
	CodeRolesNotVerified   Code = "roles_not_verified"
	CodeLastRole           Code = "last_role"
	CodeInvalidState       Code = "invalid_state"
	CodeTransient          Code = "transient_error"
	CodeTimeout            Code = "timeout"
	CodeQueueTimeout       Code = "queue_timeout"
	CodePartialFailure     Code = "partial_failure"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error carries a Code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal for
// uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// IsRetryable reports whether an automatic retry may succeed. Queue timeouts
// are surfaced to the user instead.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeTransient, CodeTimeout:
		return true
	default:
		return false
	}
}
