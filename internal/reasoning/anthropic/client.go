// Package anthropic implements the reasoning collaborator on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/reasoning"
)

const (
	Provider     = "anthropic"
	defaultModel = "claude-sonnet-4-20250514"
)

func init() {
	reasoning.RegisterReasoner(Provider, func(cfg *config.ProviderConfig) (port.Reasoner, error) {
		return NewClient(cfg)
	})
}

// Client implements port.Reasoner.
type Client struct {
	client    sdk.Client
	model     string
	maxTokens int
}

// NewClient creates a client from a provider config. A non-empty endpoint
// overrides the API base URL.
func NewClient(cfg *config.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("anthropic: api key is required")
	}
	return NewClientWithBaseURL(cfg, cfg.Endpoint), nil
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(cfg *config.ProviderConfig, baseURL string) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Client{
		client:    sdk.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *Client) Complete(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Input)),
		},
		Temperature: sdk.Float(float64(req.Temperature)),
	}
	if req.Instruction != "" {
		params.System = []sdk.TextBlockParam{{Text: req.Instruction}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			var retryAfter time.Duration
			if apiErr.Response != nil {
				retryAfter = reasoning.RetryAfterFromHeader(apiErr.Response.Header, time.Now())
			}
			return nil, reasoning.NewRateLimitError(Provider, c.model, err, retryAfter)
		}
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	if msg.StopReason == sdk.StopReasonMaxTokens {
		return nil, eris.New("anthropic: output truncated (stop_reason: max_tokens)")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	// A message without text is still a response; the caller's parser
	// decides what an empty completion means.
	return &port.ReasoningResponse{Text: strings.TrimSpace(sb.String()), ModelUsed: c.model}, nil
}
