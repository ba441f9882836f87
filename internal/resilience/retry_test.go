package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/reasoning"
	"claimflow/internal/resilience"
)

func fastConfig(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

var errTransient = &goopenai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "unavailable"}

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	val, err := resilience.DoVal(context.Background(), fastConfig(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	val, err := resilience.DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := resilience.DoVal(context.Background(), fastConfig(3), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDoVal_DefaultIsSingleAttempt(t *testing.T) {
	calls := 0
	_, err := resilience.DoVal(context.Background(), resilience.RetryConfig{}, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_NonTransientNotRetried(t *testing.T) {
	calls := 0
	_, err := resilience.DoVal(context.Background(), fastConfig(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid input")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := fastConfig(5)
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := resilience.DoVal(ctx, cfg, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_CustomShouldRetry(t *testing.T) {
	calls := 0
	cfg := fastConfig(3)
	cfg.ShouldRetry = func(error) bool { return true }

	_, err := resilience.DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("anything")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoVal_RateLimitWaitIsCapped(t *testing.T) {
	calls := 0
	cfg := fastConfig(2)
	start := time.Now()

	_, err := resilience.DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, reasoning.NewRateLimitError("openai", "gpt-4o", errors.New("429"), time.Minute)
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), time.Second, "Retry-After is capped by MaxBackoff")
}

func TestDo(t *testing.T) {
	calls := 0
	err := resilience.Do(context.Background(), fastConfig(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", fmt.Errorf("wrapped: %w", reasoning.NewRateLimitError("anthropic", "claude-sonnet-4-5", errors.New("429"), 5*time.Second)), true},
		{"azure 503", &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable}, true},
		{"azure 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, false},
		{"openai 502", fmt.Errorf("openai: %w", &goopenai.APIError{HTTPStatusCode: http.StatusBadGateway}), true},
		{"openai 400", &goopenai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"plain", errors.New("json parsing failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resilience.IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, resilience.IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 409} {
		assert.False(t, resilience.IsTransientHTTPStatus(code), code)
	}
}
