// Package errors provides the error kinds shared by every layer of the directory server.
// Use cases return errors wrapping one of these kinds; the LDAP and HTTP front-ends map the
// kind to a result code or status without leaking the wrapped detail.
package errors

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates the entry already exists (duplicate user id, group name, ...).
	ErrConflict = errors.New("already exists")

	// ErrInvalidInput indicates a malformed filter, identifier or attribute.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates failed authentication or an invalid, expired or revoked token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated principal may not perform the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrStorage indicates a transaction or connection failure in the store.
	ErrStorage = errors.New("storage error")
)

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Storage wraps a driver error so that it matches ErrStorage while keeping the cause.
func Storage(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, errors.Join(ErrStorage, err))
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
