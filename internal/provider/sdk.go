package provider

import (
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// classifySDKError maps an error returned by one of the official SDK clients.
// API errors carry the HTTP status; anything else failed before a response arrived.
func classifySDKError(provider string, err error) error {
	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return FromStatus(provider, oaiErr.StatusCode, err)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return FromStatus(provider, antErr.StatusCode, err)
	}
	return Unavailable(provider, err)
}
