// Package output defines the JSON document returned by the HTTP API and
// printed by the CLI with -json.
package output

import (
	"fmt"

	"github.com/johnayoung/req-analyzer/internal/agent"
	"github.com/johnayoung/req-analyzer/internal/consensus"
)

// Issue is one merged problem.
type Issue struct {
	Dimension   string `json:"dimension"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Dimension is one agent's judgment.
type Dimension struct {
	Dimension   string   `json:"dimension"`
	Score       int      `json:"score"`
	Rationale   string   `json:"rationale,omitempty"`
	Issues      []Issue  `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Result is the JSON output structure for one evaluated requirement.
type Result struct {
	ID                 string      `json:"id"`
	Requirement        string      `json:"requirement"`
	OverallScore       int         `json:"overall_score"`
	Verdict            string      `json:"verdict"`
	Breakdown          []Dimension `json:"breakdown"`
	Issues             []Issue     `json:"issues"`
	Suggestions        []string    `json:"suggestions"`
	RefinedRequirement string      `json:"refined_requirement,omitempty"`
	Warnings           []string    `json:"warnings,omitempty"`
	FailedDimensions   []string    `json:"failed_dimensions,omitempty"`
}

// FromResult converts an aggregate result. Slices are never nil so they
// encode as [] rather than null.
func FromResult(r consensus.Result) Result {
	out := Result{
		ID:                 r.RequirementID,
		Requirement:        r.Requirement,
		OverallScore:       r.OverallScore,
		Verdict:            string(r.Verdict),
		Breakdown:          make([]Dimension, 0, len(r.Breakdown)),
		Issues:             issues(r.Issues),
		Suggestions:        nonNil(r.Suggestions),
		RefinedRequirement: r.RefinedRequirement,
	}
	for _, j := range r.Breakdown {
		out.Breakdown = append(out.Breakdown, Dimension{
			Dimension:   j.Dimension,
			Score:       j.Score,
			Rationale:   j.Rationale,
			Issues:      issues(j.Issues),
			Suggestions: nonNil(j.Suggestions),
		})
	}
	for _, m := range r.Missing {
		out.FailedDimensions = append(out.FailedDimensions, m.Dimension)
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s", m.Dimension, m.Reason))
	}
	return out
}

func issues(in []agent.Issue) []Issue {
	out := make([]Issue, 0, len(in))
	for _, i := range in {
		out = append(out, Issue{Dimension: i.Dimension, Description: i.Description, Severity: string(i.Severity)})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
