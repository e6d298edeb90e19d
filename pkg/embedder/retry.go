package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// RetryConfig controls the retry behavior around a provider.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Client with bounded retries and exponential backoff.
// When retries are exhausted the returned error wraps
// types.ErrProviderUnavailable so callers can switch to their fallback path.
type RetryClient struct {
	client Client
	config *RetryConfig
	logger *slog.Logger
}

// NewRetryClient wraps client with retry logic.
func NewRetryClient(client Client, config *RetryConfig, logger *slog.Logger) *RetryClient {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 500 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryClient{client: client, config: config, logger: logger}
}

// Embed implements Client with retry.
func (r *RetryClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.delay(attempt)
			r.logger.Debug("retrying embedding request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		vectors, err := r.client.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d retries: %w: %w",
		r.config.MaxRetries, types.ErrProviderUnavailable, lastErr)
}

// EmbedSingle implements Client with retry.
func (r *RetryClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

func (r *RetryClient) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	return time.Duration(d)
}

// Dimensions implements Client.
func (r *RetryClient) Dimensions() int { return r.client.Dimensions() }

// ModelID implements Client.
func (r *RetryClient) ModelID() string { return r.client.ModelID() }

// Close implements Client.
func (r *RetryClient) Close() error { return r.client.Close() }
