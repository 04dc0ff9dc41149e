package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Provider abstracts a text-generation service.
// Implementations must be safe for concurrent use and must not retry internally.
type Provider interface {
	// Generate sends a prompt and returns the complete generated text.
	Generate(ctx context.Context, req Request) (Response, error)
}

// Request contains all inputs for a generation call.
type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int64
	Temperature float64
}

// Response contains the result of a generation call.
type Response struct {
	Model    string        `json:"model"`
	Content  string        `json:"content"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency_ms"`
}

// ProviderFunc allows functions to implement Provider (adapter pattern).
// Useful for testing and simple inline implementations.
type ProviderFunc func(ctx context.Context, req Request) (Response, error)

func (f ProviderFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// Kind classifies generation failures.
type Kind int

const (
	KindServiceUnavailable Kind = iota + 1
	KindRateLimited
	KindInvalidResponse
)

func (k Kind) String() string {
	switch k {
	case KindServiceUnavailable:
		return "service unavailable"
	case KindRateLimited:
		return "rate limited"
	case KindInvalidResponse:
		return "invalid response"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidResponse    = errors.New("invalid response")
)

// Error is a classified generation failure.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return e.Kind == KindServiceUnavailable
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	}
	return false
}

// Retryable reports whether err is a transport failure worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimited)
}

// Unavailable wraps a network, timeout or cancellation failure.
func Unavailable(provider string, err error) *Error {
	return &Error{Kind: KindServiceUnavailable, Provider: provider, Err: err}
}

// Invalid wraps an empty or malformed payload.
func Invalid(provider string, err error) *Error {
	return &Error{Kind: KindInvalidResponse, Provider: provider, Err: err}
}

// FromStatus classifies a non-2xx HTTP status returned by a generation API.
func FromStatus(provider string, status int, err error) *Error {
	kind := KindServiceUnavailable
	switch {
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status >= 500, status == http.StatusRequestTimeout:
		kind = KindServiceUnavailable
	case status >= 400:
		// auth failures and rejected payloads
		kind = KindInvalidResponse
	}
	return &Error{Kind: kind, Provider: provider, StatusCode: status, Err: err}
}
