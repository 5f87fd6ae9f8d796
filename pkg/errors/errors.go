// Package errors defines the error taxonomy for tenantgate.
//
// Every failure that crosses a package boundary is resolved to one of the
// types below before it reaches a caller; raw transport errors are never
// surfaced unwrapped. Each error carries a human-readable message suitable
// for showing to the user alongside a login prompt.
package errors

import (
	"errors"
	"fmt"
)

// Error types
const (
	// ErrMissingCredentials is returned when a tenant has no (or only a
	// partial) credential set in the vault; interactive login is required.
	ErrMissingCredentials = "missing_credentials"

	// ErrRevokedGrant is returned when the authorization server rejects a
	// refresh token; the stored credentials are no longer usable.
	ErrRevokedGrant = "revoked_grant"

	// ErrTransient is returned for network failures and server errors;
	// the stored credentials are preserved and the operation may be retried.
	ErrTransient = "transient"

	// ErrIdentityUnavailable is returned when the identity lookup fails;
	// the session proceeds without identity information.
	ErrIdentityUnavailable = "identity_unavailable"

	// ErrLoginCancelled is returned when the user abandons the interactive
	// login flow; no state is changed.
	ErrLoginCancelled = "login_cancelled"

	// ErrInvalidArgument is returned when an invalid argument is provided
	ErrInvalidArgument = "invalid_argument"

	// ErrInternal is returned when there is an internal error
	ErrInternal = "internal"
)

// Error represents an error in the application
type Error struct {
	// Type is the error type
	Type string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new error
func NewError(errorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingCredentialsError creates a new missing credentials error
func NewMissingCredentialsError(message string, cause error) *Error {
	return NewError(ErrMissingCredentials, message, cause)
}

// NewRevokedGrantError creates a new revoked grant error
func NewRevokedGrantError(message string, cause error) *Error {
	return NewError(ErrRevokedGrant, message, cause)
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *Error {
	return NewError(ErrTransient, message, cause)
}

// NewIdentityUnavailableError creates a new identity unavailable error
func NewIdentityUnavailableError(message string, cause error) *Error {
	return NewError(ErrIdentityUnavailable, message, cause)
}

// NewLoginCancelledError creates a new login cancelled error
func NewLoginCancelledError(message string, cause error) *Error {
	return NewError(ErrLoginCancelled, message, cause)
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string, cause error) *Error {
	return NewError(ErrInvalidArgument, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternal, message, cause)
}

func isType(err error, errorType string) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == errorType
}

// IsMissingCredentials checks if the error is a missing credentials error
func IsMissingCredentials(err error) bool {
	return isType(err, ErrMissingCredentials)
}

// IsRevokedGrant checks if the error is a revoked grant error
func IsRevokedGrant(err error) bool {
	return isType(err, ErrRevokedGrant)
}

// IsTransient checks if the error is a transient error
func IsTransient(err error) bool {
	return isType(err, ErrTransient)
}

// IsIdentityUnavailable checks if the error is an identity unavailable error
func IsIdentityUnavailable(err error) bool {
	return isType(err, ErrIdentityUnavailable)
}

// IsLoginCancelled checks if the error is a login cancelled error
func IsLoginCancelled(err error) bool {
	return isType(err, ErrLoginCancelled)
}

// IsInvalidArgument checks if the error is an invalid argument error
func IsInvalidArgument(err error) bool {
	return isType(err, ErrInvalidArgument)
}

// IsInternal checks if the error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrInternal)
}

// Reason returns the human-readable message for an error, falling back to the
// full error string for errors outside this package's taxonomy.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
