package reasoning

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is assumed when a provider throttles without saying for
// how long.
const DefaultRetryAfter = 60 * time.Second

// RateLimitError reports that a reasoning or vision provider throttled a
// request with HTTP 429. Model names the throttled model or deployment; it is
// empty when the error summarizes a whole fallback chain.
type RateLimitError struct {
	Provider   string
	Model      string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	who := e.Provider
	if e.Model != "" {
		who += "/" + e.Model
	}
	return fmt.Sprintf("reasoning: %s rate limited (retry after %s): %v", who, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. A non-positive retryAfter
// becomes DefaultRetryAfter.
func NewRateLimitError(provider, model string, err error, retryAfter time.Duration) *RateLimitError {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &RateLimitError{
		Provider:   provider,
		Model:      model,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// RetryAfterFromHeader reads the throttling delay from a 429 response.
// Azure OpenAI deployments send retry-after-ms (or x-ms-retry-after-ms) in
// milliseconds; everything else sends Retry-After as delta-seconds or an HTTP
// date. It returns 0 when no usable value is present.
func RetryAfterFromHeader(h http.Header, now time.Time) time.Duration {
	if h == nil {
		return 0
	}
	for _, key := range []string{"retry-after-ms", "x-ms-retry-after-ms"} {
		if ms, err := strconv.ParseFloat(strings.TrimSpace(h.Get(key)), 64); err == nil && ms > 0 {
			return time.Duration(ms * float64(time.Millisecond))
		}
	}

	val := strings.TrimSpace(h.Get("Retry-After"))
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(val); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
