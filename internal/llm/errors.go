package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a provider failure.
type ErrorCode string

const (
	ErrorCodeAuth           ErrorCode = "authentication_failed"
	ErrorCodeRateLimit      ErrorCode = "rate_limit"
	ErrorCodeInvalidRequest ErrorCode = "invalid_request"
	ErrorCodeInvalidModel   ErrorCode = "invalid_model"
	ErrorCodeContentBlocked ErrorCode = "content_blocked"
	ErrorCodeUnavailable    ErrorCode = "service_unavailable"
	ErrorCodeTimeout        ErrorCode = "timeout"
	ErrorCodeNetwork        ErrorCode = "network_error"
	ErrorCodeEmptyResponse  ErrorCode = "empty_response"
)

// ProviderError wraps a failed generator call with its provider and a
// classification code.
type ProviderError struct {
	Provider   string
	Code       ErrorCode
	StatusCode int // HTTP status when known
	Message    string
	Underlying error
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Provider, e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// ErrorCodeOf returns the code of the first *ProviderError in err's chain,
// or "" when there is none.
func ErrorCodeOf(err error) ErrorCode {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// codeForStatus maps an HTTP status from any provider to an ErrorCode.
func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorCodeAuth
	case status == http.StatusTooManyRequests:
		return ErrorCodeRateLimit
	case status == http.StatusNotFound:
		return ErrorCodeInvalidModel
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorCodeTimeout
	case status >= 500:
		return ErrorCodeUnavailable
	case status >= 400:
		return ErrorCodeInvalidRequest
	default:
		return ErrorCodeNetwork
	}
}

// transportError wraps an error that never produced an HTTP status.
func transportError(provider string, err error) *ProviderError {
	code := ErrorCodeNetwork
	msg := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrorCodeTimeout
		msg = "request timed out"
	}
	return &ProviderError{Provider: provider, Code: code, Message: msg, Underlying: err}
}
