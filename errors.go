package brokerauth

import (
	"errors"
	"fmt"
)

// Code identifies one member of the closed security error taxonomy. Codes are
// stable across releases and safe to match on; messages are advisory.
type Code string

const (
	// Authentication group.

	// CodeAuthenticationFailed is an exported constant or variable used by the mediation pipeline.
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	// CodeInvalidCredentials is an exported constant or variable used by the mediation pipeline.
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	// CodeExpiredCredentials is an exported constant or variable used by the mediation pipeline.
	CodeExpiredCredentials Code = "EXPIRED_CREDENTIALS"
	// CodeAccountLocked is an exported constant or variable used by the mediation pipeline.
	CodeAccountLocked Code = "ACCOUNT_LOCKED"

	// Authorization group.

	// CodeAuthorizationFailed is an exported constant or variable used by the mediation pipeline.
	CodeAuthorizationFailed Code = "AUTHORIZATION_FAILED"
	// CodeInsufficientPrivileges is an exported constant or variable used by the mediation pipeline.
	CodeInsufficientPrivileges Code = "INSUFFICIENT_PRIVILEGES"

	// Risk group.

	// CodeRiskTooHigh is an exported constant or variable used by the mediation pipeline.
	CodeRiskTooHigh Code = "RISK_TOO_HIGH"
	// CodeRateLimitExceeded is an exported constant or variable used by the mediation pipeline.
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	// CodeSuspiciousActivity is an exported constant or variable used by the mediation pipeline.
	CodeSuspiciousActivity Code = "SUSPICIOUS_ACTIVITY"

	// System group.

	// CodeSystemError is an exported constant or variable used by the mediation pipeline.
	CodeSystemError Code = "SYSTEM_ERROR"
	// CodeOperationFailed is an exported constant or variable used by the mediation pipeline.
	CodeOperationFailed Code = "OPERATION_FAILED"
	// CodeMappingError is an exported constant or variable used by the mediation pipeline.
	CodeMappingError Code = "MAPPING_ERROR"

	// Validation group.

	// CodeInvalidInput is an exported constant or variable used by the mediation pipeline.
	CodeInvalidInput Code = "INVALID_INPUT"
	// CodeContextInvalid is an exported constant or variable used by the mediation pipeline.
	CodeContextInvalid Code = "CONTEXT_INVALID"
	// CodeConfigurationError is an exported constant or variable used by the mediation pipeline.
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
)

var defaultMessages = map[Code]string{
	CodeAuthenticationFailed:   "authentication failed",
	CodeInvalidCredentials:     "invalid credentials",
	CodeExpiredCredentials:     "expired credentials",
	CodeAccountLocked:          "account locked",
	CodeAuthorizationFailed:    "authorization failed",
	CodeInsufficientPrivileges: "insufficient privileges",
	CodeRiskTooHigh:            "risk score too high",
	CodeRateLimitExceeded:      "rate limit exceeded",
	CodeSuspiciousActivity:     "suspicious activity detected",
	CodeSystemError:            "internal system error",
	CodeOperationFailed:        "operation failed",
	CodeMappingError:           "mapping error",
	CodeInvalidInput:           "invalid input",
	CodeContextInvalid:         "security context invalid",
	CodeConfigurationError:     "configuration error",
}

// Error is the only error type that crosses pipeline component boundaries.
// It pairs a stable [Code] with a human-readable message and an optional
// wrapped cause. The cause is for logs and debugging; it is never rendered
// into responses or audit records.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// NewError builds an [*Error] carrying the taxonomy's default message for code.
func NewError(code Code) *Error {
	return &Error{Code: code, Message: defaultMessages[code]}
}

// Errorf builds an [*Error] with a formatted message overriding the default.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an [*Error] whose message comes from the taxonomy and
// whose cause is retained for errors.Is / errors.As chains.
func WrapError(code Code, cause error) *Error {
	msg := defaultMessages[code]
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &Error{Code: code, Message: msg, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return string(e.Code) + ": " + e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an [*Error] carrying the same code. Message
// text is deliberately excluded from the comparison.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// CodeOf extracts the taxonomy code from err, or [CodeSystemError] when err
// is outside the taxonomy. A nil err yields the empty code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeSystemError
}
