package provider

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/johnayoung/req-analyzer/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Format: "text", Output: &buf})

	ok := NewLogged(ProviderFunc(func(context.Context, Request) (Response, error) {
		return Response{Content: "SCORE: 7"}, nil
	}), "google", logger)
	resp, err := ok.Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "secret prompt"})
	require.NoError(t, err)
	assert.Equal(t, "SCORE: 7", resp.Content)

	failing := NewLogged(ProviderFunc(func(context.Context, Request) (Response, error) {
		return Response{}, Unavailable("google", errors.New("down"))
	}), "google", logger)
	_, err = failing.Generate(context.Background(), Request{Model: "gemini-2.5-flash"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)

	out := buf.String()
	assert.Contains(t, out, "component=provider")
	assert.Contains(t, out, "model=gemini-2.5-flash")
	assert.Contains(t, out, "level=WARN")
	assert.NotContains(t, out, "secret prompt")
}
