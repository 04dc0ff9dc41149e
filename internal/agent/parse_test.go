package agent

import (
	"errors"
	"testing"

	"github.com/johnayoung/req-analyzer/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJudgment(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, j Judgment)
	}{
		{
			name: "full answer",
			raw: `SCORE: 6
RATIONALE: The actor is clear but the data format is not.
ISSUES:
- [high] Password rules are not specified
- [low] "usuarios" could mean admins too
SUGGESTIONS:
- Define password length and complexity
- Name the role that registers users`,
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 60, j.Score)
				assert.Equal(t, "The actor is clear but the data format is not.", j.Rationale)
				require.Len(t, j.Issues, 2)
				assert.Equal(t, Issue{Dimension: Clarity, Description: "Password rules are not specified", Severity: SeverityHigh}, j.Issues[0])
				assert.Equal(t, SeverityLow, j.Issues[1].Severity)
				assert.Equal(t, []string{"Define password length and complexity", "Name the role that registers users"}, j.Suggestions)
			},
		},
		{
			name: "sections out of order with markdown and fences",
			raw: "Here is my review:\n```\n**Suggestions:**\n* Add an error case\n\n## Issues:\n1. [alta] Falta el caso de error\n**Score:** 7.5/10\n```",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 75, j.Score)
				assert.Equal(t, []string{"Add an error case"}, j.Suggestions)
				require.Len(t, j.Issues, 1)
				assert.Equal(t, SeverityHigh, j.Issues[0].Severity)
				assert.Equal(t, "Falta el caso de error", j.Issues[0].Description)
			},
		},
		{
			name: "score only, placeholders ignored",
			raw:  "score: 10\nISSUES: none\nSUGGESTIONS:\n- N/A",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 100, j.Score)
				assert.Empty(t, j.Issues)
				assert.Empty(t, j.Suggestions)
				assert.NotNil(t, j.Issues)
				assert.NotNil(t, j.Suggestions)
			},
		},
		{
			name: "missing severity defaults to medium",
			raw:  "SCORE: 0\nISSUES:\n- Nothing measurable\n- [REQ-7] references an unknown id",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 0, j.Score)
				require.Len(t, j.Issues, 2)
				assert.Equal(t, SeverityMedium, j.Issues[0].Severity)
				assert.Equal(t, "[REQ-7] references an unknown id", j.Issues[1].Description)
			},
		},
		{
			name: "decimal comma and numeric text in suggestions",
			raw:  "SCORE: 4,5\nSUGGESTIONS:\n- 2.5 seconds is a reasonable limit",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 45, j.Score)
				assert.Equal(t, []string{"2.5 seconds is a reasonable limit"}, j.Suggestions)
			},
		},
		{
			name: "bullet starting with a header word stays in its list",
			raw:  "SCORE: 6\nRATIONALE: Missing limit.\nSUGGESTIONS:\n* Rationale: explain why the limit is 2s\n* Add a limit",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, "Missing limit.", j.Rationale)
				assert.Equal(t, []string{"Rationale: explain why the limit is 2s", "Add a limit"}, j.Suggestions)
			},
		},
		{
			name: "score bullet is not a second score",
			raw:  "SCORE: 6\nISSUES:\n- Score: no pass mark is given\nSUGGESTIONS:\n* Score: define a scoring rule",
			check: func(t *testing.T, j Judgment) {
				assert.Equal(t, 60, j.Score)
				require.Len(t, j.Issues, 1)
				assert.Equal(t, "Score: no pass mark is given", j.Issues[0].Description)
				assert.Equal(t, []string{"Score: define a scoring rule"}, j.Suggestions)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := ParseJudgment(Clarity, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, Clarity, j.Dimension)
			tt.check(t, j)
		})
	}
}

func TestParseJudgment_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no score", raw: "ISSUES:\n- [high] vague\nSUGGESTIONS:\n- fix it"},
		{name: "score above raw scale", raw: "SCORE: 85"},
		{name: "negative score", raw: "SCORE: -1"},
		{name: "not a number", raw: "SCORE: high"},
		{name: "empty score", raw: "SCORE:"},
		{name: "two scores", raw: "SCORE: 5\nSCORE: 6"},
		{name: "json instead of tags", raw: `{"porcentaje": 80}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJudgment(Clarity, tt.raw)
			require.Error(t, err)

			var perr *ParseError
			assert.True(t, errors.As(err, &perr))
			assert.ErrorIs(t, err, provider.ErrInvalidResponse)
		})
	}
}

func TestParseRefined(t *testing.T) {
	got, err := ParseRefined("Sure!\nREFINED: \"El administrador debe poder registrar usuarios.\"")
	require.NoError(t, err)
	assert.Equal(t, "El administrador debe poder registrar usuarios.", got)

	_, err = ParseRefined("El administrador debe poder registrar usuarios.")
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)

	_, err = ParseRefined("REFINED:   ")
	assert.Error(t, err)
}
