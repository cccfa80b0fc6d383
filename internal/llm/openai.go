package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel implements LanguageModel against an OpenAI-compatible chat
// completions endpoint. Rate-limit responses (HTTP 429) are retried with
// exponential backoff; other API errors fail immediately.
type OpenAIModel struct {
	client openai.Client
	model  string
}

// NewOpenAIModel creates a model client. baseURL may be empty to use the
// default API endpoint. Returns an error if apiKey is empty.
func NewOpenAIModel(apiKey, baseURL, model string) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key not set (API_KEY environment variable or model.api_key)")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIModel{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Complete submits a chat completion with an optional system message and
// returns the assistant text.
func (m *OpenAIModel) Complete(ctx context.Context, systemMessage, prompt string) (string, error) {
	return m.CompleteWithModel(ctx, "", systemMessage, prompt)
}

// CompleteWithModel is Complete with a per-request model override.
func (m *OpenAIModel) CompleteWithModel(ctx context.Context, model, systemMessage, prompt string) (string, error) {
	if model == "" {
		model = m.model
	}
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if systemMessage != "" {
		messages = append(messages, openai.SystemMessage(systemMessage))
	}
	messages = append(messages, openai.UserMessage(prompt))

	var content string
	operation := func() error {
		resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: messages,
			Model:    model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("empty choices in response"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 60 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternal, err)
	}
	return content, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
