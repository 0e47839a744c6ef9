package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrorType classifies provider API errors for retry decisions.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrRateLimit            // HTTP 429
	ErrOverloaded           // HTTP 500, 502, 503
	ErrAuth                 // HTTP 401, 403
	ErrBadRequest           // HTTP 400
	ErrMalformedResponse    // JSON parse failure, empty choices
)

func (e ErrorType) String() string {
	switch e {
	case ErrRateLimit:
		return "rate_limit"
	case ErrOverloaded:
		return "provider_overloaded"
	case ErrAuth:
		return "auth_error"
	case ErrBadRequest:
		return "bad_request"
	case ErrMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// APIError wraps a provider error with its classification.
type APIError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	RetryAfter time.Duration // only set for rate limit errors
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (HTTP %d): %s (retry after %s)", e.Type, e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Type, e.StatusCode, e.Message)
}

// Retryable reports whether this error type supports automatic retry.
func (e *APIError) Retryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrMalformedResponse:
		return true
	default:
		return false
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// classifyHTTPError classifies a non-200 HTTP response.
func classifyHTTPError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)

	var eb errorBody
	json.Unmarshal(body, &eb) //nolint:errcheck // best-effort parse

	msg := eb.Error.Message
	if msg == "" {
		msg = string(body)
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &APIError{
			Type:       ErrRateLimit,
			StatusCode: resp.StatusCode,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return &APIError{Type: ErrOverloaded, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &APIError{Type: ErrAuth, StatusCode: resp.StatusCode, Message: msg}
	case http.StatusBadRequest:
		return &APIError{Type: ErrBadRequest, StatusCode: resp.StatusCode, Message: msg}
	default:
		return &APIError{Type: ErrUnknown, StatusCode: resp.StatusCode, Message: msg}
	}
}

// parseRetryAfter parses the Retry-After header value as seconds.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
