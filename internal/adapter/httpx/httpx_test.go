package httpx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkyoung/covgate/internal/adapter/httpx"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantType  httpx.ErrorType
		retryable bool
	}{
		{401, httpx.ErrTypeAuthentication, false},
		{403, httpx.ErrTypeAuthentication, false},
		{404, httpx.ErrTypeNotFound, false},
		{429, httpx.ErrTypeRateLimit, true},
		{500, httpx.ErrTypeServiceUnavailable, true},
		{503, httpx.ErrTypeServiceUnavailable, true},
		{422, httpx.ErrTypeInvalidRequest, false},
	}

	for _, tt := range tests {
		err := httpx.FromStatusCode("gitlab", tt.status, "boom")
		assert.Equal(t, tt.wantType, err.Type, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.IsRetryable(), "status %d", tt.status)
	}
}

func TestError_Is(t *testing.T) {
	err := httpx.FromStatusCode("gitlab", 503, "down")
	assert.ErrorIs(t, err, &httpx.Error{Type: httpx.ErrTypeServiceUnavailable})
	assert.NotErrorIs(t, err, &httpx.Error{Type: httpx.ErrTypeAuthentication})
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, httpx.ShouldRetry(nil))
	assert.False(t, httpx.ShouldRetry(errors.New("plain")))
	assert.True(t, httpx.ShouldRetry(httpx.FromStatusCode("gitlab", 500, "x")))
	assert.False(t, httpx.ShouldRetry(httpx.FromStatusCode("gitlab", 401, "x")))
}

func TestExponentialBackoff_Bounds(t *testing.T) {
	config := httpx.RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2.0,
	}

	for attempt := 0; attempt < 10; attempt++ {
		backoff := httpx.ExponentialBackoff(attempt, config)
		assert.GreaterOrEqual(t, backoff, time.Duration(0))
		assert.LessOrEqual(t, backoff, config.MaxBackoff)
	}
}

func TestRetryWithBackoff_SucceedsAfterRetries(t *testing.T) {
	config := httpx.RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
	}

	attempts := 0
	err := httpx.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return httpx.FromStatusCode("gitlab", 503, "down")
		}
		return nil
	}, config)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	err := httpx.RetryWithBackoff(context.Background(), func(ctx context.Context) error {
		attempts++
		return httpx.FromStatusCode("gitlab", 401, "denied")
	}, httpx.DefaultRetryConfig())

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run after cancellation")
		return nil
	}, httpx.DefaultRetryConfig())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedactToken(t *testing.T) {
	logger := httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, true)
	assert.Equal(t, "", logger.RedactToken(""))
	assert.Equal(t, "****", logger.RedactToken("abcd"))
	assert.Equal(t, "****6789", logger.RedactToken("glpat-123456789"))
}

func TestRedactTokenDisabled(t *testing.T) {
	logger := httpx.NewDefaultLogger(httpx.LogLevelInfo, httpx.LogFormatHuman, false)
	assert.Equal(t, "glpat-123456789", logger.RedactToken("glpat-123456789"))

	logger.SetRedaction(true)
	assert.Equal(t, "****6789", logger.RedactToken("glpat-123456789"))
}
