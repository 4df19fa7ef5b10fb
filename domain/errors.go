package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeInvalid        ErrorCode = "INVALID"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	ErrCodeUnavailable    ErrorCode = "UNAVAILABLE"
	ErrCodeInternal       ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Session errors. The validator and the expiry oracle swallow all three
// storage-side kinds and report "no usable session".
var (
	ErrMissingSession  = NewError(ErrCodeUnauthorized, "session missing")
	ErrCryptoFailure   = NewError(ErrCodeUnauthorized, "session decryption failed")
	ErrMalformedRecord = NewError(ErrCodeUnauthorized, "session record malformed")
	ErrSessionExpired  = NewError(ErrCodeSessionExpired, "session expired")
)

// Common domain errors.
var (
	ErrInvalidCredentials    = NewError(ErrCodeUnauthorized, "incorrect username or password")
	ErrInvalidAccessPassword = NewError(ErrCodeForbidden, "incorrect password")
	ErrBackendUnavailable    = NewError(ErrCodeUnavailable, "control backend unavailable")
	ErrComputerNotFound      = NewError(ErrCodeNotFound, "computer not found")
	ErrUnauthorized          = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload        = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
