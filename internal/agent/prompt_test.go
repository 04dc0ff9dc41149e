package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	tmpl, ok := DefaultTemplate(Clarity)
	require.True(t, ok)

	text := "  El sistema debe permitir registrar usuarios con nombre, correo y contraseña\n(segunda línea)  "
	req := Requirement{Text: text, Context: "Portal de clientes"}

	got, err := BuildPrompt(tmpl, req)
	require.NoError(t, err)

	assert.Contains(t, got, text, "requirement text must be inserted verbatim")
	assert.Contains(t, got, "Context:\nPortal de clientes")
	assert.Contains(t, got, "SCORE: <number from 0 to 10")
	assert.Contains(t, got, "Example answer:")
	assert.True(t, strings.HasPrefix(got, "You are a requirements analyst reviewing CLARITY."))

	again, err := BuildPrompt(tmpl, req)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestBuildPrompt_NoContextNoExample(t *testing.T) {
	got, err := BuildPrompt(Template{Instructions: "Judge it."}, Requirement{Text: "The system shall log in users."})
	require.NoError(t, err)

	assert.NotContains(t, got, "Context:")
	assert.NotContains(t, got, "Example answer:")
	assert.Contains(t, got, "\"\"\"\nThe system shall log in users.\n\"\"\"\n\nAnswer ONLY")
}

func TestBuildPrompt_EmptyTemplate(t *testing.T) {
	_, err := BuildPrompt(Template{Instructions: "   "}, Requirement{Text: "x"})
	assert.Error(t, err)
}

func TestDefaultTemplates(t *testing.T) {
	for _, dim := range KnownDimensions() {
		tmpl, ok := DefaultTemplate(dim)
		assert.True(t, ok, dim)
		assert.NotEmpty(t, tmpl.Instructions, dim)
	}
	_, ok := DefaultTemplate("performance")
	assert.False(t, ok)
}
