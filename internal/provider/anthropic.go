package provider

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic Claude Models
// Full list: https://docs.anthropic.com/en/docs/about-claude/models/overview
//
//   - claude-sonnet-4-5  : Smart model for complex agents and coding
//   - claude-haiku-4-5   : Fastest with near-frontier intelligence
//   - claude-opus-4-1    : Maximum intelligence, premium performance

const (
	anthropicName = "anthropic"

	// the Messages API requires max_tokens on every call
	defaultAnthropicMaxTokens = 1024
)

// Anthropic implements Provider on top of the official Messages client.
type Anthropic struct {
	client anthropic.Client
}

// AnthropicOption configures an Anthropic provider.
type AnthropicOption func(*anthropicOptions)

type anthropicOptions struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// WithAnthropicBaseURL sets a custom base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(a *anthropicOptions) { a.baseURL = url }
}

// WithAnthropicHTTPClient sets a custom HTTP client.
func WithAnthropicHTTPClient(c *http.Client) AnthropicOption {
	return func(a *anthropicOptions) { a.httpClient = c }
}

// WithAnthropicAPIKey overrides the key read from the environment.
func WithAnthropicAPIKey(key string) AnthropicOption {
	return func(a *anthropicOptions) { a.apiKey = key }
}

// NewAnthropic creates an Anthropic provider.
// Reads API key from ANTHROPIC_API_KEY environment variable.
func NewAnthropic(opts ...AnthropicOption) (*Anthropic, error) {
	a := anthropicOptions{
		apiKey:     os.Getenv("ANTHROPIC_API_KEY"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&a)
	}
	if a.apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable required")
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(a.apiKey),
		option.WithHTTPClient(a.httpClient),
		option.WithMaxRetries(0),
	}
	if a.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.baseURL))
	}

	return &Anthropic{client: anthropic.NewClient(clientOpts...)}, nil
}

// Generate sends a prompt to a Claude model and returns the response.
func (a *Anthropic) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return Response{}, classifySDKError(anthropicName, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{}, Invalid(anthropicName, errors.New("no text content in response"))
	}

	return Response{
		Model:    req.Model,
		Content:  text.String(),
		Provider: anthropicName,
		Latency:  time.Since(start),
	}, nil
}
