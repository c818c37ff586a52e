package pandascore

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies an APIError
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindHTTP
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimit
	KindServer
	KindDecoding
	KindInvalidRequest
	KindTimeout
	KindCache
	KindWebSocket
)

// String returns the kind name
func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit"
	case KindServer:
		return "server"
	case KindDecoding:
		return "decoding"
	case KindInvalidRequest:
		return "invalid_request"
	case KindTimeout:
		return "timeout"
	case KindCache:
		return "cache"
	case KindWebSocket:
		return "websocket"
	default:
		return "unknown"
	}
}

const (
	defaultUnauthorizedMessage = "Invalid authentication token"
	defaultForbiddenMessage    = "Plan does not support requested URL"

	serverRetryDelay    = 5 * time.Second
	transientRetryDelay = 2 * time.Second
)

// APIError is the single error type returned by the PandaScore client.
// Kind selects which of the payload fields are meaningful.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	// Resource is the request URL of a not-found response
	Resource string
	// Response is the parsed error body when the server sent one
	Response   *ErrorResponse
	RetryAfter *time.Duration
	Remaining  *int
	// Body holds the raw payload of a decoding failure
	Body []byte
	Err  error
}

// Error implements the error interface
func (e *APIError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("Network error: %v", e.Err)
	case KindHTTP:
		msg := "Unknown error"
		if e.Response != nil && e.Response.Message != "" {
			msg = e.Response.Message
		}
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, msg)
	case KindUnauthorized:
		return "Unauthorized: " + e.Message
	case KindForbidden:
		return "Forbidden: " + e.Message
	case KindNotFound:
		return "Resource not found: " + e.Resource
	case KindRateLimit:
		msg := "Rate limit exceeded"
		if e.Remaining != nil {
			msg += fmt.Sprintf(" (remaining: %d)", *e.Remaining)
		}
		if e.RetryAfter != nil {
			msg += fmt.Sprintf(" - retry after %ds", int(e.RetryAfter.Seconds()))
		}
		return msg
	case KindServer:
		msg := e.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return fmt.Sprintf("Server error %d: %s", e.StatusCode, msg)
	case KindDecoding:
		return fmt.Sprintf("Decoding error: %v", e.Err)
	case KindInvalidRequest:
		return "Invalid request: " + e.Message
	case KindTimeout:
		return "Request timed out"
	case KindCache:
		return fmt.Sprintf("Cache error: %v", e.Err)
	case KindWebSocket:
		return "WebSocket error: " + e.Message
	default:
		return fmt.Sprintf("pandascore error: %v", e.Err)
	}
}

// Unwrap returns the underlying cause
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether retrying the call may succeed
func (e *APIError) IsRetryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindServer, KindRateLimit:
		return true
	default:
		return false
	}
}

// SuggestedRetryDelay returns the delay the server or error kind calls for
func (e *APIError) SuggestedRetryDelay() (time.Duration, bool) {
	switch e.Kind {
	case KindRateLimit:
		if e.RetryAfter != nil {
			return *e.RetryAfter, true
		}
		return 0, false
	case KindServer:
		return serverRetryDelay, true
	case KindNetwork, KindTimeout:
		return transientRetryDelay, true
	default:
		return 0, false
	}
}

// KindOf returns the kind of the APIError in err's chain, or 0
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return 0
}

// IsNotFound reports whether err is a not-found response
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsUnauthorized reports whether err is an authentication or plan failure
func IsUnauthorized(err error) bool {
	k := KindOf(err)
	return k == KindUnauthorized || k == KindForbidden
}

// IsRateLimited reports whether err is a 429 response
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimit
}

func invalidRequest(format string, args ...any) *APIError {
	return &APIError{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}
