package embedder

import (
	"context"
	"fmt"

	localembed "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// LocalClient runs an embedding model in-process, useful when no hosted
// provider is reachable from the deployment environment.
type LocalClient struct {
	model  *localembed.Embedder
	config *Config
}

// NewLocalClient loads the local embedding model named in config.Model.
func NewLocalClient(config *Config) (*LocalClient, error) {
	model, err := localembed.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load local embedding model %q: %w", config.Model, err)
	}
	return &LocalClient{model: model, config: config}, nil
}

// Embed implements Client.
func (c *LocalClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// The local runtime has no context support; cancellation is checked up
	// front so cancelled batches at least fail fast.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := c.model.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("local embedding failed: %w", err)
	}
	return vectors, nil
}

// EmbedSingle implements Client.
func (c *LocalClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
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
func (c *LocalClient) Dimensions() int {
	return c.config.Dimensions
}

// ModelID implements Client.
func (c *LocalClient) ModelID() string {
	return c.config.Model
}

// Close implements Client.
func (c *LocalClient) Close() error {
	c.model.Close()
	return nil
}
