package runner

import (
	"context"
	"errors"
	"strings"

	"github.com/johnayoung/req-analyzer/internal/provider"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("invalid requirement")

	// ErrNoAgentsSucceeded matches every NoAgentsSucceededError.
	ErrNoAgentsSucceeded = errors.New("no agents succeeded")
)

// ValidationError rejects input before any agent runs.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NoAgentsSucceededError is returned when every configured agent failed.
// Failures holds one error per agent, in configuration order.
type NoAgentsSucceededError struct {
	Failures []error
}

func (e *NoAgentsSucceededError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return ErrNoAgentsSucceeded.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *NoAgentsSucceededError) Is(target error) bool {
	return target == ErrNoAgentsSucceeded
}

func (e *NoAgentsSucceededError) Unwrap() []error {
	return e.Failures
}

// Transient reports whether at least one agent failed on a retryable
// transport error or the request deadline.
func (e *NoAgentsSucceededError) Transient() bool {
	for _, f := range e.Failures {
		if provider.Retryable(f) || errors.Is(f, context.DeadlineExceeded) {
			return true
		}
	}
	return false
}
