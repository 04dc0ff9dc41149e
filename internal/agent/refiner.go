package agent

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/johnayoung/req-analyzer/internal/provider"
)

const refinePrompt = `You are a requirements engineer. The requirement below scored very low on quality.
Rewrite it so it is short, clear, complete and testable without changing its subject.

Requirement:
"""
{{.Text}}
"""
{{- if .Context}}

Context:
{{.Context}}
{{- end}}

Answer ONLY with one line in the following format, in the same language as the requirement:
REFINED: <rewritten requirement>
`

var refineTmpl = template.Must(template.New("refine").Parse(refinePrompt))

// Refiner asks the generation service for a rewritten requirement.
type Refiner struct {
	provider provider.Provider
	gen      Generation
	retry    RetryPolicy
}

// NewRefiner creates a Refiner.
func NewRefiner(p provider.Provider, gen Generation, retry RetryPolicy) *Refiner {
	return &Refiner{provider: p, gen: gen, retry: retry}
}

// Refine returns the rewritten requirement text.
func (r *Refiner) Refine(ctx context.Context, req Requirement) (string, error) {
	var buf bytes.Buffer
	if err := refineTmpl.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	resp, err := generate(ctx, r.provider, provider.Request{
		Model:       r.gen.Model,
		Prompt:      buf.String(),
		MaxTokens:   r.gen.MaxTokens,
		Temperature: r.gen.Temperature,
	}, r.retry)
	if err != nil {
		return "", fmt.Errorf("refine: %w", err)
	}

	return ParseRefined(resp.Content)
}

// ParseRefined extracts the text after the REFINED: tag.
func ParseRefined(raw string) (string, error) {
	for _, line := range strings.Split(raw, "\n") {
		cleaned := strings.TrimLeft(strings.TrimSpace(line), "#*> ")
		idx := strings.Index(cleaned, ":")
		if idx < 0 || strings.ToUpper(strings.Trim(cleaned[:idx], "*_ ")) != "REFINED" {
			continue
		}
		text := strings.TrimSpace(strings.Trim(cleaned[idx+1:], "*_ "))
		text = strings.Trim(text, `"`)
		if text == "" {
			return "", parseErrorf("empty REFINED line")
		}
		return text, nil
	}
	return "", parseErrorf("missing REFINED line")
}
