package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBatchSize balances requests-per-minute vs tokens-per-minute rate limits.
const DefaultBatchSize = 100

// OpenAIEmbedder generates embeddings through an OpenAI-compatible embeddings
// endpoint. Requests are batched; rate-limit errors are retried with
// exponential backoff, other errors fail immediately.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
}

// NewOpenAIEmbedder creates an embedder. baseURL may be empty for the default
// endpoint; batchSize <= 0 uses DefaultBatchSize.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimensions, batchSize int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key not set (API_KEY environment variable or model.api_key)")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch returns embeddings for texts, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatchWithRetry(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, batch...)
	}
	return all, nil
}

func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: e.model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts)))
		}
		embeddings = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			embeddings[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client has no resources to release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 embedding to float32 for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
