package auth

import (
	"errors"
	"fmt"
	"net/url"

	"account-portal/internal/config"
)

var (
	// ErrConfiguration is the same sentinel the config layer wraps, so startup
	// failures from either package are matched by one errors.Is check.
	ErrConfiguration = config.ErrInvalidConfig

	ErrStateInvalid     = errors.New("state invalid")
	ErrStateNotFound    = errors.New("state not found")
	ErrExchangeFailed   = errors.New("token exchange failed")
	ErrInvalidToken     = errors.New("invalid token")
	ErrReauthRequired   = errors.New("reauthorization required")
	ErrRotationConflict = errors.New("refresh credential rotated concurrently")
)

// Codes returned to the browser on the error redirect.
const (
	CodeAccessDenied   = "access_denied"
	CodeInvalidRequest = "invalid_request"
	CodeStateInvalid   = "state_invalid"
	CodeExchangeFailed = "exchange_failed"
	CodeInvalidToken   = "invalid_token"
	CodeServerError    = "server_error"
)

// FlowError is a failed login or link step. Code is safe to show to the user,
// Message and Err are for logs.
type FlowError struct {
	Code    string
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// RedirectURL appends the error code to base.
func (e *FlowError) RedirectURL(base string) string {
	return base + "?error=" + url.QueryEscape(e.Code)
}

func newFlowError(code, message string, err error) *FlowError {
	return &FlowError{Code: code, Message: message, Err: err}
}

// ExchangeError describes a failed token endpoint call without echoing the
// response body, which may contain credentials.
type ExchangeError struct {
	Grant      string
	StatusCode int
	ErrorCode  string
	Err        error
}

func (e *ExchangeError) Error() string {
	msg := fmt.Sprintf("%s: grant=%s", ErrExchangeFailed, e.Grant)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status=%d", e.StatusCode)
	}
	if e.ErrorCode != "" {
		msg += " error=" + e.ErrorCode
	}
	return msg
}

func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExchangeFailed}
	}
	return []error{ErrExchangeFailed, e.Err}
}
