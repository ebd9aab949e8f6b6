package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeRateLimit, "HTTP-error-code: 429, Error: too fast")
	assert.Equal(t, "rate_limit: HTTP-error-code: 429, Error: too fast", err.Error())

	wrapped := Wrap(fmt.Errorf("socket closed"), ErrorTypeConnection, "connection failed")
	assert.Contains(t, wrapped.Error(), "connection failed")
	assert.Contains(t, wrapped.Error(), "socket closed")
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeHTTP, "no-op"))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "limited")
	outer := fmt.Errorf("all 3 attempts failed: %w", inner)

	assert.True(t, IsType(outer, ErrorTypeRateLimit))
	assert.False(t, IsType(outer, ErrorTypeTimeout))
	assert.Equal(t, ErrorTypeRateLimit, TypeOf(outer))
}

func TestTypeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrorTypeHTTP, TypeOf(fmt.Errorf("plain")))
}

func TestRetryClasses(t *testing.T) {
	transport := []ErrorType{ErrorTypeTimeout, ErrorTypeConnection}
	service := []ErrorType{ErrorTypeRateLimit, ErrorTypeInternal, ErrorTypeUnavailable, ErrorTypeTruncated}
	fatal := []ErrorType{ErrorTypeBadRequest, ErrorTypeUnauthorized, ErrorTypeForbidden, ErrorTypeNotFound, ErrorTypeConfig}

	for _, et := range transport {
		assert.True(t, IsTransportError(New(et, "x")), string(et))
		assert.False(t, IsServiceError(New(et, "x")), string(et))
	}
	for _, et := range service {
		assert.True(t, IsServiceError(New(et, "x")), string(et))
		assert.False(t, IsTransportError(New(et, "x")), string(et))
	}
	for _, et := range fatal {
		assert.False(t, IsTransportError(New(et, "x")), string(et))
		assert.False(t, IsServiceError(New(et, "x")), string(et))
	}
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeRateLimit, "limited").
		WithDetail("retry_after", "30").
		WithDetail("status_code", 429)

	require.NotNil(t, err.Details)
	assert.Equal(t, "30", err.Details["retry_after"])
	assert.Equal(t, 429, err.Details["status_code"])
}

func TestStackCaptured(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	assert.NotEmpty(t, err.Stack)
}
