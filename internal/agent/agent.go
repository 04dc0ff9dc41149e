// Package agent implements the requirement evaluators. Each agent judges one
// quality dimension: it renders a prompt from a fixed template, makes a single
// generation call and parses the tagged answer into a Judgment.
package agent

import (
	"context"
	"fmt"
)

// Dimensions with built-in templates.
const (
	Clarity       = "clarity"
	Completeness  = "completeness"
	Consistency   = "consistency"
	Verifiability = "verifiability"
)

// Score bounds of a Judgment.
const (
	MinScore = 0
	MaxScore = 100
)

// Agent evaluates one quality dimension of a requirement.
type Agent interface {
	// Dimension names the quality axis this agent judges.
	Dimension() string

	// Evaluate returns the agent's judgment or an *EvaluationFailedError.
	Evaluate(ctx context.Context, req Requirement) (Judgment, error)
}

// Requirement is a single natural-language requirement statement.
type Requirement struct {
	ID      string `json:"id,omitempty"`
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// Severity grades an issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Issue is one problem an agent found.
type Issue struct {
	Dimension   string   `json:"dimension"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Judgment is one agent's structured verdict on a requirement.
type Judgment struct {
	Dimension   string   `json:"dimension"`
	Score       int      `json:"score"`
	Rationale   string   `json:"rationale,omitempty"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Validate checks the invariants every Judgment must hold.
func (j Judgment) Validate() error {
	if j.Dimension == "" {
		return fmt.Errorf("judgment: missing dimension")
	}
	if j.Score < MinScore || j.Score > MaxScore {
		return fmt.Errorf("judgment: %s score %d outside [%d, %d]", j.Dimension, j.Score, MinScore, MaxScore)
	}
	return nil
}
