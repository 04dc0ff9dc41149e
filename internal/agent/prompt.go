package agent

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Template holds the dimension-specific parts of a prompt.
type Template struct {
	// Instructions describe the evaluator's role and what to look for.
	Instructions string `yaml:"instructions"`
	// Example is an optional few-shot answer in the exchange format.
	Example string `yaml:"example,omitempty"`
}

const promptFrame = `{{.Instructions}}

Requirement:
"""
{{.Text}}
"""
{{- if .Context}}

Context:
{{.Context}}
{{- end}}

Answer ONLY in the following format, with no other text:
SCORE: <number from 0 to 10, where 10 means no problems at all>
RATIONALE: <one or two sentences>
ISSUES:
- [high|medium|low] <problem found>
SUGGESTIONS:
- <concrete improvement>

Write "none" under ISSUES or SUGGESTIONS when there is nothing to report.
Write descriptions and suggestions in the same language as the requirement.
{{- if .Example}}

Example answer:
{{.Example}}
{{- end}}
`

var frame = template.Must(template.New("prompt").Parse(promptFrame))

// BuildPrompt renders the prompt for one requirement. The requirement text is
// inserted verbatim; the output depends only on the template and the requirement.
func BuildPrompt(t Template, req Requirement) (string, error) {
	if strings.TrimSpace(t.Instructions) == "" {
		return "", fmt.Errorf("prompt: template has no instructions")
	}

	data := struct {
		Instructions string
		Example      string
		Text         string
		Context      string
	}{
		Instructions: strings.TrimSpace(t.Instructions),
		Example:      strings.TrimSpace(t.Example),
		Text:         req.Text,
		Context:      strings.TrimSpace(req.Context),
	}

	var buf bytes.Buffer
	if err := frame.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

var defaultTemplates = map[string]Template{
	Clarity: {
		Instructions: `You are a requirements analyst reviewing CLARITY.
Judge whether the requirement has exactly one reasonable interpretation.
Flag vague or subjective terms (for example fast, adequate, easy, efficient / rápido, adecuado, fácil, eficiente),
undefined actors, unclear pronouns and terms that need a glossary.`,
		Example: `SCORE: 4
RATIONALE: The actor and the expected response time are not defined.
ISSUES:
- [high] "fast" is subjective and has no measurable threshold
- [medium] The actor performing the search is not identified
SUGGESTIONS:
- State a measurable response time, e.g. results within 2 seconds
- Name the user role that performs the search`,
	},
	Completeness: {
		Instructions: `You are a requirements analyst reviewing COMPLETENESS.
Judge whether the requirement states everything needed to implement it: actor, action, data involved,
preconditions, expected outcome, error handling and constraints.`,
	},
	Consistency: {
		Instructions: `You are a requirements analyst reviewing CONSISTENCY.
Judge whether the requirement contradicts itself or its context, mixes several requirements in one
statement (not atomic), or uses terms inconsistently.`,
	},
	Verifiability: {
		Instructions: `You are a tester reviewing VERIFIABILITY.
Judge whether an objective test can decide if the requirement is met.
List at most three simple test cases as SUGGESTIONS.`,
	},
}

// DefaultTemplate returns the built-in template for a dimension.
func DefaultTemplate(dimension string) (Template, bool) {
	t, ok := defaultTemplates[dimension]
	return t, ok
}

// KnownDimensions lists the dimensions that have a built-in template, in default order.
func KnownDimensions() []string {
	return []string{Clarity, Completeness, Consistency, Verifiability}
}
