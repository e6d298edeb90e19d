package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// flakyClient fails a fixed number of times before succeeding.
type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("connection refused")
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *flakyClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *flakyClient) Dimensions() int { return 3 }
func (f *flakyClient) ModelID() string { return "flaky" }
func (f *flakyClient) Close() error    { return nil }

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        maxRetries,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryClientRecovers(t *testing.T) {
	flaky := &flakyClient{failures: 2}
	r := NewRetryClient(flaky, fastRetryConfig(3), slog.Default())

	vectors, err := r.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if flaky.calls != 3 {
		t.Errorf("expected 3 calls, got %d", flaky.calls)
	}
}

func TestRetryClientExhaustionSignalsUnavailable(t *testing.T) {
	flaky := &flakyClient{failures: 100}
	r := NewRetryClient(flaky, fastRetryConfig(2), slog.Default())

	_, err := r.Embed(context.Background(), []string{"a"})
	if !errors.Is(err, types.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
	if flaky.calls != 3 { // initial attempt + 2 retries
		t.Errorf("expected 3 calls, got %d", flaky.calls)
	}
}

func TestRetryClientHonorsCancellation(t *testing.T) {
	flaky := &flakyClient{failures: 100}
	r := NewRetryClient(flaky, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Hour, // backoff long enough that only cancellation ends the wait
		MaxDelay:          time.Hour,
		BackoffMultiplier: 2.0,
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Embed(ctx, []string{"a"})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt backoff")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	flaky := &flakyClient{failures: 1000}
	b := NewBreakerClient(flaky, BreakerConfig{Timeout: 60, ReadyToTripRatio: 0.5}, slog.Default())

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = b.Embed(ctx, []string{"a"})
	}

	callsBefore := flaky.calls
	_, err := b.Embed(ctx, []string{"a"})
	if !errors.Is(err, types.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable from open breaker, got %v", err)
	}
	if flaky.calls != callsBefore {
		t.Error("open breaker should not reach the provider")
	}
}

func TestHashingClientDeterministic(t *testing.T) {
	c := NewHashingClient(64)
	ctx := context.Background()

	a1, err := c.EmbedSingle(ctx, "Blade Runner 1982")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := c.EmbedSingle(ctx, "Blade Runner 1982")
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("hashing embedder is not deterministic")
		}
	}

	if len(a1) != 64 {
		t.Errorf("expected 64 dims, got %d", len(a1))
	}

	// Similar strings should be closer than unrelated ones.
	b, _ := c.EmbedSingle(ctx, "Blade Runner (1982)")
	z, _ := c.EmbedSingle(ctx, "completely unrelated documentary about bees")
	if dot(a1, b) <= dot(a1, z) {
		t.Error("similar titles should score higher than unrelated text")
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
