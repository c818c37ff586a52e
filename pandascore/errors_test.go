package pandascore

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorRetryable(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindNetwork, true},
		{KindTimeout, true},
		{KindServer, true},
		{KindRateLimit, true},
		{KindHTTP, false},
		{KindUnauthorized, false},
		{KindForbidden, false},
		{KindNotFound, false},
		{KindDecoding, false},
		{KindInvalidRequest, false},
		{KindCache, false},
		{KindWebSocket, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.retryable, (&APIError{Kind: tt.kind}).IsRetryable())
		})
	}
}

func TestSuggestedRetryDelay(t *testing.T) {
	retryAfter := 30 * time.Second

	d, ok := (&APIError{Kind: KindRateLimit, RetryAfter: &retryAfter}).SuggestedRetryDelay()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)

	_, ok = (&APIError{Kind: KindRateLimit}).SuggestedRetryDelay()
	assert.False(t, ok)

	d, ok = (&APIError{Kind: KindServer}).SuggestedRetryDelay()
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)

	d, ok = (&APIError{Kind: KindTimeout}).SuggestedRetryDelay()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = (&APIError{Kind: KindNotFound}).SuggestedRetryDelay()
	assert.False(t, ok)
}

func TestAPIErrorMessages(t *testing.T) {
	retryAfter := 30 * time.Second
	remaining := 0

	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{"rate limit", &APIError{Kind: KindRateLimit, RetryAfter: &retryAfter, Remaining: &remaining}, "Rate limit exceeded (remaining: 0) - retry after 30s"},
		{"unauthorized", &APIError{Kind: KindUnauthorized, Message: defaultUnauthorizedMessage}, "Unauthorized: Invalid authentication token"},
		{"not found", &APIError{Kind: KindNotFound, Resource: "https://api.pandascore.co/x"}, "Resource not found: https://api.pandascore.co/x"},
		{"server", &APIError{Kind: KindServer, StatusCode: 503}, "Server error 503: Unknown error"},
		{"http with body", &APIError{Kind: KindHTTP, StatusCode: 400, Response: &ErrorResponse{Message: "bad filter"}}, "HTTP 400: bad filter"},
		{"timeout", &APIError{Kind: KindTimeout}, "Request timed out"},
		{"websocket", &APIError{Kind: KindWebSocket, Message: "nope"}, "WebSocket error: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorClassificationHelpers(t *testing.T) {
	wrapped := fmt.Errorf("failed to get players: %w", &APIError{Kind: KindNotFound})
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsUnauthorized(wrapped))

	assert.True(t, IsUnauthorized(&APIError{Kind: KindForbidden}))
	assert.True(t, IsRateLimited(&APIError{Kind: KindRateLimit}))
	assert.Equal(t, ErrorKind(0), KindOf(errors.New("plain")))

	cause := errors.New("dial tcp: refused")
	assert.ErrorIs(t, &APIError{Kind: KindNetwork, Err: cause}, cause)
}
