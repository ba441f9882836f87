package reasoning_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"claimflow/internal/reasoning"
)

func TestRateLimitError(t *testing.T) {
	underlying := fmt.Errorf("rate limited")
	rlErr := reasoning.NewRateLimitError("azure-openai", "gpt-4o-mini", underlying, 30*time.Second)

	assert.Contains(t, rlErr.Error(), "azure-openai/gpt-4o-mini")
	assert.Contains(t, rlErr.Error(), "30s")
	assert.Equal(t, underlying, errors.Unwrap(rlErr))

	var target *reasoning.RateLimitError
	assert.True(t, errors.As(fmt.Errorf("structuring: %w", rlErr), &target))
	assert.Equal(t, 30*time.Second, target.RetryAfter)
	assert.Equal(t, "gpt-4o-mini", target.Model)
}

func TestRateLimitError_ChainSummaryOmitsModel(t *testing.T) {
	rlErr := reasoning.NewRateLimitError("all", "", errors.New("all reasoners rate limited"), 5*time.Second)

	assert.Contains(t, rlErr.Error(), "reasoning: all rate limited")
}

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	assert.Equal(t, reasoning.DefaultRetryAfter, reasoning.NewRateLimitError("openai", "gpt-4o", nil, 0).RetryAfter)
}

func TestRetryAfterFromHeader(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		header http.Header
		want   time.Duration
	}{
		{"nil header", nil, 0},
		{"missing", http.Header{}, 0},
		{"delta seconds", http.Header{"Retry-After": {"12"}}, 12 * time.Second},
		{"negative seconds", http.Header{"Retry-After": {"-3"}}, 0},
		{"http date", http.Header{"Retry-After": {"Mon, 02 Jun 2025 10:00:20 GMT"}}, 20 * time.Second},
		{"http date in the past", http.Header{"Retry-After": {"Wed, 21 Oct 2015 07:28:00 GMT"}}, 0},
		{"garbage", http.Header{"Retry-After": {"soon"}}, 0},
		{"azure milliseconds", http.Header{"Retry-After-Ms": {"1500"}, "Retry-After": {"2"}}, 1500 * time.Millisecond},
		{"azure x-ms milliseconds", http.Header{"X-Ms-Retry-After-Ms": {"250"}}, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reasoning.RetryAfterFromHeader(tt.header, now))
		})
	}
}
