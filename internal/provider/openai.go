package provider

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI Models
// Full list: https://platform.openai.com/docs/models
//
// GPT-4.1:
//   - gpt-4.1              : Smartest non-reasoning model
//   - gpt-4.1-mini         : Smaller, faster version of GPT-4.1
//   - gpt-4.1-nano         : Smallest GPT-4.1 variant
//
// Previous:
//   - gpt-4o               : Fast, intelligent, flexible GPT model
//   - gpt-4o-mini          : Fast, affordable for focused tasks

const openAIName = "openai"

// OpenAI implements Provider on top of the official Chat Completions client.
type OpenAI struct {
	client openai.Client
}

// OpenAIOption configures an OpenAI provider.
type OpenAIOption func(*openAIOptions)

type openAIOptions struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// WithOpenAIBaseURL sets a custom base URL (useful for proxies or compatible APIs).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(o *openAIOptions) { o.baseURL = url }
}

// WithOpenAIHTTPClient sets a custom HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(o *openAIOptions) { o.httpClient = c }
}

// WithOpenAIAPIKey overrides the key read from the environment.
func WithOpenAIAPIKey(key string) OpenAIOption {
	return func(o *openAIOptions) { o.apiKey = key }
}

// NewOpenAI creates an OpenAI provider.
// Reads API key from OPENAI_API_KEY environment variable.
func NewOpenAI(opts ...OpenAIOption) (*OpenAI, error) {
	o := openAIOptions{
		apiKey:     os.Getenv("OPENAI_API_KEY"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable required")
	}

	// Retries belong to the agent layer, so the SDK's own retry loop is switched off.
	clientOpts := []option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(o.baseURL))
	}

	return &OpenAI{client: openai.NewClient(clientOpts...)}, nil
}

// Generate sends a prompt to an OpenAI model and returns the response.
func (o *OpenAI) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, classifySDKError(openAIName, err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, Invalid(openAIName, errors.New("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Response{}, Invalid(openAIName, errors.New("empty content in response"))
	}

	return Response{
		Model:    req.Model,
		Content:  content,
		Provider: openAIName,
		Latency:  time.Since(start),
	}, nil
}
