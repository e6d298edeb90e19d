package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// BreakerConfig controls the circuit breaker around a provider.
type BreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // seconds
	Timeout          int     `mapstructure:"timeout"`  // seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// BreakerClient wraps a Client with a circuit breaker. While the breaker is
// open, calls fail immediately with types.ErrProviderUnavailable instead of
// waiting out timeouts against a dead backend.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client with circuit breaking.
func NewBreakerClient(client Client, cfg BreakerConfig, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadyToTripRatio <= 0 {
		cfg.ReadyToTripRatio = 0.6
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30
	}
	st := gobreaker.Settings{
		Name:        "embedding-provider",
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding provider breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerClient{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

// Embed implements Client.
func (b *BreakerClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.client.Embed(ctx, texts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("embedding provider circuit open: %w", types.ErrProviderUnavailable)
		}
		return nil, err
	}
	return out.([][]float32), nil
}

// EmbedSingle implements Client.
func (b *BreakerClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// Dimensions implements Client.
func (b *BreakerClient) Dimensions() int { return b.client.Dimensions() }

// ModelID implements Client.
func (b *BreakerClient) ModelID() string { return b.client.ModelID() }

// Close implements Client.
func (b *BreakerClient) Close() error { return b.client.Close() }
