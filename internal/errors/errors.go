package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Credential errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoCredential = errors.New("no credential")

	// ErrKeysUnavailable means a signature could not be checked because the
	// signing keys could not be fetched. It says nothing about the credential.
	ErrKeysUnavailable = errors.New("signing keys unavailable")

	// Server authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Transport errors
	ErrNotFound      = errors.New("not found")
	ErrRequestFailed = errors.New("request failed")
	ErrServer        = errors.New("server error")
	ErrTimeout       = errors.New("request timed out")
	ErrNetwork       = errors.New("network error")

	// Storage errors
	ErrKeyNotFound  = errors.New("key not found")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrCorruptValue = errors.New("corrupt stored value")

	// Session errors
	ErrInvalidLogoutReason = errors.New("invalid logout reason")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need only one errors import
func New(text string) error {
	return errors.New(text)
}
