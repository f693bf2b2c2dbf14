package ldap

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/allisson/lightldap/internal/errors"
)

// ResultCode is an LDAPResult resultCode.
type ResultCode int

// Result codes returned by the server.
const (
	ResultSuccess                  ResultCode = 0
	ResultOperationsError          ResultCode = 1
	ResultProtocolError            ResultCode = 2
	ResultSizeLimitExceeded        ResultCode = 4
	ResultAuthMethodNotSupported   ResultCode = 7
	ResultNoSuchObject             ResultCode = 32
	ResultInvalidDNSyntax          ResultCode = 34
	ResultInvalidCredentials       ResultCode = 49
	ResultInsufficientAccessRights ResultCode = 50
	ResultUnwillingToPerform       ResultCode = 53
	ResultEntryAlreadyExists       ResultCode = 68
	ResultOther                    ResultCode = 80
)

var resultCodeNames = map[ResultCode]string{
	ResultSuccess:                  "success",
	ResultOperationsError:          "operationsError",
	ResultProtocolError:            "protocolError",
	ResultSizeLimitExceeded:        "sizeLimitExceeded",
	ResultAuthMethodNotSupported:   "authMethodNotSupported",
	ResultNoSuchObject:             "noSuchObject",
	ResultInvalidDNSyntax:          "invalidDNSyntax",
	ResultInvalidCredentials:       "invalidCredentials",
	ResultInsufficientAccessRights: "insufficientAccessRights",
	ResultUnwillingToPerform:       "unwillingToPerform",
	ResultEntryAlreadyExists:       "entryAlreadyExists",
	ResultOther:                    "other",
}

// String returns the RFC 4511 name of the code.
func (c ResultCode) String() string {
	if name, ok := resultCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("resultCode(%d)", int(c))
}

// Result is the outcome sent back for a request.
type Result struct {
	Code      ResultCode
	MatchedDN string
	Message   string
}

// Error is a protocol-level failure carrying its result code.
type Error struct {
	Code    ResultCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return "ldap: " + e.Code.String()
	}
	return "ldap: " + e.Code.String() + ": " + e.Message
}

func newError(code ResultCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// resultFor maps an operation error onto the result sent to the client. Errors from the
// directory are classified by kind; storage and unexpected errors never leak their
// message.
func resultFor(err error) Result {
	if err == nil {
		return Result{Code: ResultSuccess}
	}

	var ldapErr *Error
	if errors.As(err, &ldapErr) {
		return Result{Code: ldapErr.Code, Message: ldapErr.Message}
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return Result{Code: ResultNoSuchObject, Message: kindMessage(err, apperrors.ErrNotFound)}
	case errors.Is(err, apperrors.ErrConflict):
		return Result{Code: ResultEntryAlreadyExists, Message: kindMessage(err, apperrors.ErrConflict)}
	case errors.Is(err, apperrors.ErrInvalidInput):
		return Result{Code: ResultUnwillingToPerform, Message: kindMessage(err, apperrors.ErrInvalidInput)}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return Result{Code: ResultInvalidCredentials}
	case errors.Is(err, apperrors.ErrForbidden):
		return Result{Code: ResultInsufficientAccessRights, Message: "insufficient access rights"}
	case errors.Is(err, apperrors.ErrStorage):
		return Result{Code: ResultOperationsError, Message: "internal error"}
	default:
		return Result{Code: ResultOther, Message: "internal error"}
	}
}

// kindMessage drops the trailing error kind from a domain error message.
func kindMessage(err, kind error) string {
	return strings.TrimSuffix(err.Error(), ": "+kind.Error())
}
