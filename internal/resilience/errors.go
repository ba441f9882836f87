package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	goopenai "github.com/sashabaranov/go-openai"

	"claimflow/internal/reasoning"
)

// IsTransient reports whether err is safe to retry: provider rate limits,
// retryable HTTP statuses from any of the collaborator SDKs, network timeouts
// and dropped connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var rlErr *reasoning.RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}
	if code, ok := statusCode(err); ok {
		return IsTransientHTTPStatus(code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// statusCode extracts the HTTP status from the error types of the SDKs the
// collaborators are built on.
func statusCode(err error) (int, bool) {
	var azErr *azcore.ResponseError
	if errors.As(err, &azErr) {
		return azErr.StatusCode, true
	}
	var oaAPIErr *goopenai.APIError
	if errors.As(err, &oaAPIErr) && oaAPIErr.HTTPStatusCode > 0 {
		return oaAPIErr.HTTPStatusCode, true
	}
	var oaReqErr *goopenai.RequestError
	if errors.As(err, &oaReqErr) && oaReqErr.HTTPStatusCode > 0 {
		return oaReqErr.HTTPStatusCode, true
	}
	var anErr *sdk.Error
	if errors.As(err, &anErr) && anErr.StatusCode > 0 {
		return anErr.StatusCode, true
	}
	return 0, false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
