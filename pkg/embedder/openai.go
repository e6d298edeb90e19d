package embedder

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// OpenAIClient talks to the OpenAI embeddings API or any compatible
// endpoint via BaseURL.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates an OpenAI embedding client.
func NewOpenAIClient(config *Config) *OpenAIClient {
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		config: config,
	}
}

// Embed implements Client.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.config.Model),
	})
	if err != nil {
		// Any transport or API failure here means the provider could not
		// serve us; the retry/breaker wrappers decide what happens next.
		return nil, fmt.Errorf("embedding request failed: %w: %w", types.ErrProviderUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// EmbedSingle implements Client.
func (c *OpenAIClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// Dimensions implements Client.
func (c *OpenAIClient) Dimensions() int {
	return c.config.Dimensions
}

// ModelID implements Client.
func (c *OpenAIClient) ModelID() string {
	return c.config.Model
}

// Close implements Client.
func (c *OpenAIClient) Close() error {
	return nil
}
