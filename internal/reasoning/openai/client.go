// Package openai implements the reasoning and vision collaborators on the
// OpenAI Chat Completions API, for both api.openai.com and Azure OpenAI
// deployments.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	goopenai "github.com/sashabaranov/go-openai"

	"claimflow/internal/config"
	"claimflow/internal/port"
	"claimflow/internal/reasoning"
)

const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure-openai"
)

func init() {
	reasoning.RegisterReasoner(ProviderOpenAI, newReasoner)
	reasoning.RegisterReasoner(ProviderAzureOpenAI, newReasoner)
	reasoning.RegisterVision(ProviderOpenAI, newVision)
	reasoning.RegisterVision(ProviderAzureOpenAI, newVision)
}

func newReasoner(cfg *config.ProviderConfig) (port.Reasoner, error) { return NewClient(cfg) }

func newVision(cfg *config.ProviderConfig) (port.VisionExtractor, error) { return NewClient(cfg) }

// Client implements port.Reasoner and port.VisionExtractor.
type Client struct {
	client    *goopenai.Client
	provider  string
	model     string
	maxTokens int
}

// NewClient creates a client from a provider config. For azure-openai the
// endpoint is the resource URL and the model is the deployment name.
func NewClient(cfg *config.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("openai: api key is required")
	}
	var clientCfg goopenai.ClientConfig
	switch cfg.Provider {
	case ProviderAzureOpenAI:
		if cfg.Endpoint == "" {
			return nil, eris.New("openai: azure endpoint is required")
		}
		clientCfg = goopenai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		deployment := cfg.Model
		clientCfg.AzureModelMapperFunc = func(string) string { return deployment }
	default:
		clientCfg = goopenai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientCfg.BaseURL = cfg.Endpoint
		}
	}
	return newClient(cfg, clientCfg), nil
}

// NewClientWithBaseURL creates an api.openai.com-style client pointing at a
// custom base URL (for testing).
func NewClientWithBaseURL(cfg *config.ProviderConfig, baseURL string) *Client {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = baseURL
	return newClient(cfg, clientCfg)
}

func newClient(cfg *config.ProviderConfig, clientCfg goopenai.ClientConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = throttleDoer{client: &http.Client{Timeout: timeout}}

	model := cfg.Model
	if model == "" {
		model = goopenai.GPT4oMini
	}
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	return &Client{
		client:    goopenai.NewClientWithConfig(clientCfg),
		provider:  provider,
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

// Complete sends the instruction as the system message and the input as the
// user message.
func (c *Client) Complete(ctx context.Context, req port.ReasoningRequest) (*port.ReasoningResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.Instruction},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Input},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	text, err := c.create(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return &port.ReasoningResponse{Text: text, ModelUsed: c.model}, nil
}

// ExtractText sends every image as a base64 data URI alongside the
// instruction in one user message.
func (c *Client) ExtractText(ctx context.Context, input port.VisionInput) (*port.VisionOutput, error) {
	if len(input.Images) == 0 {
		return nil, eris.New("openai: no images to transcribe")
	}
	parts := make([]goopenai.ChatMessagePart, 0, len(input.Images)+1)
	parts = append(parts, goopenai.ChatMessagePart{
		Type: goopenai.ChatMessagePartTypeText,
		Text: input.Instruction,
	})
	for _, img := range input.Images {
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    dataURI(img),
				Detail: goopenai.ImageURLDetailHigh,
			},
		})
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens: c.maxTokens,
	}

	text, err := c.create(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return &port.VisionOutput{Text: text, ModelUsed: c.model}, nil
}

func (c *Client) create(ctx context.Context, req goopenai.ChatCompletionRequest) (string, error) {
	var retryAfter time.Duration
	resp, err := c.client.CreateChatCompletion(context.WithValue(ctx, retryAfterKey{}, &retryAfter), req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", reasoning.NewRateLimitError(c.provider, c.model, err, retryAfter)
		}
		var reqErr *goopenai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", reasoning.NewRateLimitError(c.provider, c.model, err, retryAfter)
		}
		return "", eris.Wrapf(err, "%s: create chat completion", c.provider)
	}
	if len(resp.Choices) == 0 {
		return "", eris.Errorf("%s: empty response: no choices", c.provider)
	}
	if resp.Choices[0].FinishReason == goopenai.FinishReasonLength {
		return "", eris.Errorf("%s: output truncated (finish_reason: length)", c.provider)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// retryAfterKey holds a *time.Duration that throttleDoer fills in when a call
// is throttled. go-openai errors do not expose response headers.
type retryAfterKey struct{}

type throttleDoer struct {
	client *http.Client
}

func (d throttleDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.client.Do(req)
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		if slot, ok := req.Context().Value(retryAfterKey{}).(*time.Duration); ok {
			*slot = reasoning.RetryAfterFromHeader(resp.Header, time.Now())
		}
	}
	return resp, err
}

func dataURI(img port.ImageInput) string {
	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(img.Data))
}
