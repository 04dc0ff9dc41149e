package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/provider"
	"github.com/stretchr/testify/assert"
)

func failed(dim string, cause error) error {
	return &agent.EvaluationFailedError{Dimension: dim, Cause: cause}
}

func TestNoAgentsSucceededError_Transient(t *testing.T) {
	tests := []struct {
		name     string
		failures []error
		want     bool
	}{
		{
			name:     "service unavailable",
			failures: []error{failed(agent.Clarity, provider.Unavailable("google", errors.New("down")))},
			want:     true,
		},
		{
			name:     "rate limited",
			failures: []error{failed(agent.Clarity, &provider.Error{Kind: provider.KindRateLimited, Provider: "openai"})},
			want:     true,
		},
		{
			name:     "deadline",
			failures: []error{failed(agent.Clarity, context.DeadlineExceeded)},
			want:     true,
		},
		{
			name: "parse errors only",
			failures: []error{
				failed(agent.Clarity, &agent.ParseError{Reason: "missing SCORE line"}),
				failed(agent.Completeness, provider.Invalid("google", errors.New("empty"))),
			},
		},
		{
			name:     "prompt build error",
			failures: []error{failed(agent.Clarity, errors.New("prompt: template has no instructions"))},
		},
		{
			name: "one transient among parse errors",
			failures: []error{
				failed(agent.Clarity, &agent.ParseError{Reason: "bad score"}),
				failed(agent.Completeness, context.DeadlineExceeded),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &NoAgentsSucceededError{Failures: tt.failures}
			assert.Equal(t, tt.want, err.Transient())
			assert.ErrorIs(t, err, ErrNoAgentsSucceeded)
		})
	}
}
