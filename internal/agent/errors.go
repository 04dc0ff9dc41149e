package agent

import (
	"fmt"

	"github.com/johnayoung/req-analyzer/internal/provider"
)

// ParseError reports generated text that does not follow the answer format.
// It matches provider.ErrInvalidResponse under errors.Is.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "parse judgment: " + e.Reason }

func (e *ParseError) Is(target error) bool { return target == provider.ErrInvalidResponse }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// EvaluationFailedError wraps the transport or parse failure of one agent.
type EvaluationFailedError struct {
	Dimension string
	Cause     error
}

func (e *EvaluationFailedError) Error() string {
	return fmt.Sprintf("%s evaluation failed: %v", e.Dimension, e.Cause)
}

func (e *EvaluationFailedError) Unwrap() error { return e.Cause }
