package otp

import (
	"fmt"

	"github.com/expo-registration-api/internal/domain"
)

// Machine-readable error codes returned to clients.
const (
	CodeInvalidEmail            = "invalid_email"
	CodeInvalidOTP              = "invalid_otp"
	CodeMissingRegistrationType = "missing_registration_type"
	CodeUnknownRegistrationType = "unknown_registration_type"
	CodeAlreadyRegistered       = "already_registered"
	CodeResendCooldown          = "resend_cooldown"
	CodeSendLimit               = "send_limit_exceeded"
	CodeSendFailed              = "send_failed"
	CodeTooManyAttempts         = "too_many_attempts"
	CodeServerError             = "server_error"
)

// Error carries the client-facing code plus whatever the caller needs to act on it.
// It unwraps to a domain sentinel for status mapping.
type Error struct {
	Code          string
	Message       string
	RetryAfterSec int
	Existing      *domain.ExistingRegistration
	Kind          error // domain sentinel used for status mapping
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func (e *Error) Unwrap() error { return e.Kind }

func badRequest(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Kind: domain.ErrBadRequest}
}

func rateLimited(code, msg string, retryAfter int) *Error {
	return &Error{Code: code, Message: msg, RetryAfterSec: retryAfter, Kind: domain.ErrRateLimited}
}

func internal(code, msg string) *Error {
	return &Error{Code: code, Message: msg, Kind: domain.ErrUnavailable}
}
