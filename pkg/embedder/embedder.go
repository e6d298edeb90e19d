// Package embedder abstracts the embedding provider: text in, fixed-size
// vector out. Providers are wrapped in a retry layer with exponential
// backoff and a circuit breaker; once retries are exhausted or the breaker
// opens, callers receive types.ErrProviderUnavailable and degrade to their
// documented fallback path instead of failing the surrounding batch.
package embedder

import (
	"context"
)

// Client generates embeddings.
type Client interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle returns the vector for one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)

	// Dimensions is the vector length this client produces.
	Dimensions() int

	// ModelID identifies the embedding model, recorded on EmbeddingRecords.
	ModelID() string

	// Close releases backing resources.
	Close() error
}

// Config holds provider-independent embedding settings.
type Config struct {
	Provider   string `mapstructure:"provider"` // openai, local, hashing
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}
