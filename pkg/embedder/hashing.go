package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
)

// HashingClient produces deterministic pseudo-embeddings by hashing token
// trigrams into a fixed number of buckets. Similar texts share trigrams and
// land near each other, which is enough for tests and offline development;
// it is not a substitute for a real model.
type HashingClient struct {
	dims    int
	modelID string
}

// NewHashingClient returns a hashing embedder with the given dimensionality.
func NewHashingClient(dims int) *HashingClient {
	if dims <= 0 {
		dims = 64
	}
	return &HashingClient{dims: dims, modelID: "hashing-v1"}
}

// Embed implements Client.
func (c *HashingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = c.embed(text)
	}
	return vectors, nil
}

// EmbedSingle implements Client.
func (c *HashingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.embed(text), nil
}

func (c *HashingClient) embed(text string) []float32 {
	v := make([]float32, c.dims)
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	runes := []rune(normalized)
	if len(runes) < 3 {
		runes = append(runes, ' ', ' ')
	}
	for i := 0; i+3 <= len(runes); i++ {
		sum := sha256.Sum256([]byte(string(runes[i : i+3])))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(c.dims)
		if sum[4]&1 == 0 {
			v[bucket]++
		} else {
			v[bucket]--
		}
	}
	// Unit-normalize so cosine similarity behaves.
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
	}
	return v
}

// Dimensions implements Client.
func (c *HashingClient) Dimensions() int {
	return c.dims
}

// ModelID implements Client.
func (c *HashingClient) ModelID() string {
	return c.modelID
}

// Close implements Client.
func (c *HashingClient) Close() error {
	return nil
}
