// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// MinPasswordLength is the shortest password accepted anywhere.
const MinPasswordLength = 6

var (
	// emailRegex is a basic email validation pattern
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	userIDRegex        = regexp.MustCompile(`^[a-z0-9._@-]{1,64}$`)
	attributeNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// PasswordLength validates that a password has at least Min characters.
type PasswordLength struct {
	Min int
}

// Validate checks the rune count of the password.
func (p PasswordLength) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_password_type", "password must be a string")
	}
	if s == "" {
		return nil // Let Required handle empty strings
	}
	if utf8.RuneCountInString(s) < p.Min {
		return validation.NewError(
			"validation_password_min_length",
			"password must be at least "+strconv.Itoa(p.Min)+" characters",
		)
	}
	return nil
}

// Password enforces the minimum password length.
var Password = PasswordLength{Min: MinPasswordLength}

// Email validates email format using regex
var Email = validation.NewStringRuleWithError(
	func(s string) bool {
		return emailRegex.MatchString(s)
	},
	validation.NewError("validation_email_format", "must be a valid email address"),
)

// UserID validates a normalized user identifier.
var UserID = validation.NewStringRuleWithError(
	func(s string) bool {
		return userIDRegex.MatchString(s)
	},
	validation.NewError("validation_user_id", "must be 1 to 64 characters of a-z, 0-9, '.', '_', '@' or '-'"),
)

// AttributeName validates the name of a custom attribute.
var AttributeName = validation.NewStringRuleWithError(
	func(s string) bool {
		return attributeNameRegex.MatchString(s)
	},
	validation.NewError("validation_attribute_name", "must start with a-z and contain only a-z, 0-9, '_' or '-'"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
