package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/johnayoung/req-analyzer/internal/provider"
)

// RetryPolicy bounds how often a transport failure is retried.
// Attempts counts the first call; values below 1 mean a single attempt.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Generation carries the per-call options sent to the provider.
type Generation struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// PromptAgent judges one dimension with a single templated generation call.
type PromptAgent struct {
	dimension string
	template  Template
	provider  provider.Provider
	gen       Generation
	retry     RetryPolicy
}

// Option configures a PromptAgent.
type Option func(*PromptAgent)

// WithTemplate replaces the agent's prompt template.
func WithTemplate(t Template) Option {
	return func(a *PromptAgent) { a.template = t }
}

// WithGeneration sets model, output length and temperature.
func WithGeneration(g Generation) Option {
	return func(a *PromptAgent) { a.gen = g }
}

// WithRetry sets the transport retry policy.
func WithRetry(r RetryPolicy) Option {
	return func(a *PromptAgent) { a.retry = r }
}

// New creates an agent for dimension using its built-in template, if any.
// Dimensions without a built-in template need WithTemplate.
func New(dimension string, p provider.Provider, opts ...Option) (*PromptAgent, error) {
	a := &PromptAgent{
		dimension: dimension,
		provider:  p,
		retry:     RetryPolicy{Attempts: 1},
	}
	if t, ok := DefaultTemplate(dimension); ok {
		a.template = t
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.provider == nil {
		return nil, fmt.Errorf("agent %s: provider required", dimension)
	}
	if a.template.Instructions == "" {
		return nil, fmt.Errorf("agent %s: no template", dimension)
	}
	return a, nil
}

// NewClarity creates the ambiguity-detection agent.
func NewClarity(p provider.Provider, opts ...Option) (*PromptAgent, error) {
	return New(Clarity, p, opts...)
}

// NewCompleteness creates the completeness-checking agent.
func NewCompleteness(p provider.Provider, opts ...Option) (*PromptAgent, error) {
	return New(Completeness, p, opts...)
}

// NewConsistency creates the consistency-checking agent.
func NewConsistency(p provider.Provider, opts ...Option) (*PromptAgent, error) {
	return New(Consistency, p, opts...)
}

// NewVerifiability creates the testability agent.
func NewVerifiability(p provider.Provider, opts ...Option) (*PromptAgent, error) {
	return New(Verifiability, p, opts...)
}

func (a *PromptAgent) Dimension() string { return a.dimension }

// Evaluate builds the prompt, calls the provider and parses the answer.
func (a *PromptAgent) Evaluate(ctx context.Context, req Requirement) (Judgment, error) {
	prompt, err := BuildPrompt(a.template, req)
	if err != nil {
		return Judgment{}, &EvaluationFailedError{Dimension: a.dimension, Cause: err}
	}

	resp, err := generate(ctx, a.provider, a.request(prompt), a.retry)
	if err != nil {
		return Judgment{}, &EvaluationFailedError{Dimension: a.dimension, Cause: err}
	}

	j, err := ParseJudgment(a.dimension, resp.Content)
	if err != nil {
		return Judgment{}, &EvaluationFailedError{Dimension: a.dimension, Cause: err}
	}
	return j, nil
}

func (a *PromptAgent) request(prompt string) provider.Request {
	return provider.Request{
		Model:       a.gen.Model,
		Prompt:      prompt,
		MaxTokens:   a.gen.MaxTokens,
		Temperature: a.gen.Temperature,
	}
}

// generate calls p, retrying transport failures with linear backoff. It never
// sleeps past ctx's deadline.
func generate(ctx context.Context, p provider.Provider, req provider.Request, policy RetryPolicy) (provider.Response, error) {
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := p.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !provider.Retryable(err) || attempt == attempts || ctx.Err() != nil {
			break
		}

		timer := time.NewTimer(policy.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return provider.Response{}, fmt.Errorf("%w (retry abandoned: %v)", lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return provider.Response{}, lastErr
}
