package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure so callers can react without string matching.
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountSuspended   Code = "ACCOUNT_SUSPENDED"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeRefreshFailed      Code = "REFRESH_FAILED"
	CodeNetwork            Code = "NETWORK"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeServer             Code = "SERVER"
)

type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is makes errors.Is match any AppError carrying the same code, so wrapped
// errors still compare equal to the package sentinels.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the classification code, or CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid email or password")
	ErrAccountSuspended   = New(CodeAccountSuspended, "your account has been suspended, please contact support")
	ErrNotAuthenticated   = New(CodeUnauthenticated, "not authenticated")
	ErrSessionExpired     = New(CodeRefreshFailed, "session expired, please log in again")
)

func NetworkError(cause error) error {
	return Wrap(CodeNetwork, "request failed", cause)
}

func ServerError(status int, body string) error {
	return New(CodeServer, fmt.Sprintf("server returned status %d: %s", status, body))
}
