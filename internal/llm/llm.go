// Package llm provides completion access to an OpenAI-compatible language model API.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrExternal marks a failed or malformed language-model API exchange.
// Callers surface it as an external-service failure rather than a client error.
var ErrExternal = errors.New("language model request failed")

// LanguageModel produces a completion for a prompt.
type LanguageModel interface {
	Complete(ctx context.Context, systemMessage, prompt string) (string, error)
	// CompleteWithModel overrides the configured model name for one request.
	// An empty model falls back to the configured default.
	CompleteWithModel(ctx context.Context, model, systemMessage, prompt string) (string, error)
}

// Unconfigured stands in when no API key is available. Every completion fails
// with ErrExternal, so endpoints that do not need a language model keep
// working while translation and question answering report the missing key.
type Unconfigured struct{}

func (Unconfigured) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrExternal)
}

func (Unconfigured) CompleteWithModel(ctx context.Context, model, systemMessage, prompt string) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrExternal)
}
