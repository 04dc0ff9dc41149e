package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// Google Gemini Models
// Full list: https://ai.google.dev/gemini-api/docs/models
//
// Gemini 2.5:
//   - gemini-2.5-pro             : Advanced thinking model, complex reasoning
//   - gemini-2.5-flash           : Best price-performance, large scale processing
//   - gemini-2.5-flash-lite      : Fastest flash, cost-efficient, high throughput
//
// Gemini 2.0 (Previous):
//   - gemini-2.0-flash           : Second generation workhorse, 1M context

const googleName = "google"

// Google implements Provider for Google's Gemini API.
type Google struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GoogleOption configures a Google provider.
type GoogleOption func(*Google)

// WithGoogleBaseURL sets a custom base URL.
func WithGoogleBaseURL(url string) GoogleOption {
	return func(g *Google) { g.baseURL = strings.TrimRight(url, "/") }
}

// WithGoogleHTTPClient sets a custom HTTP client.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(g *Google) { g.httpClient = c }
}

// WithGoogleAPIKey overrides the key read from the environment.
func WithGoogleAPIKey(key string) GoogleOption {
	return func(g *Google) { g.apiKey = key }
}

// NewGoogle creates a Google/Gemini provider.
// Reads API key from GOOGLE_API_KEY, falling back to GEMINI_API_KEY.
func NewGoogle(opts ...GoogleOption) (*Google, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	g := &Google{
		apiKey:     apiKey,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.apiKey == "" {
		return nil, errors.New("GOOGLE_API_KEY or GEMINI_API_KEY environment variable required")
	}

	return g, nil
}

// Generate sends a prompt to a Gemini model and returns the response.
func (g *Google) Generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	payload := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: req.Prompt}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshaling request: %w", err)
	}

	// Gemini uses model name in URL path; the key travels in a header so it never shows up in logged URLs.
	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, req.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, Unavailable(googleName, fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, Unavailable(googleName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, FromStatus(googleName, resp.StatusCode, fmt.Errorf("API error: %s", truncate(string(respBody), 300)))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return Response{}, Invalid(googleName, fmt.Errorf("parsing response: %w", err))
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return Response{}, Invalid(googleName, errors.New("no content in response"))
	}

	var text strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return Response{}, Invalid(googleName, errors.New("empty text in response"))
	}

	return Response{
		Model:    req.Model,
		Content:  text.String(),
		Provider: googleName,
		Latency:  time.Since(start),
	}, nil
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int64   `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// truncate shortens upstream error bodies to at most max bytes, cutting on a
// rune boundary.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
