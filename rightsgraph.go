package rightsgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cinelex/rightsgraph/pkg/config"
	"github.com/cinelex/rightsgraph/pkg/docstore"
	"github.com/cinelex/rightsgraph/pkg/embedder"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/ingest"
	"github.com/cinelex/rightsgraph/pkg/query"
	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/schema"
	"github.com/cinelex/rightsgraph/pkg/types"
	"github.com/cinelex/rightsgraph/pkg/vecindex"
)

// Client is the default RightsGraph implementation, wiring the store,
// resolver, query engine, and ingestion pipeline together.
type Client struct {
	config   *config.Config
	logger   *slog.Logger
	registry *schema.Registry
	store    *hypergraph.Store
	embedder embedder.Client
	index    vecindex.Index
	cache    *resolver.Cache
	resolver *resolver.Resolver
	queries  *query.Engine
	pipeline *ingest.Pipeline
}

var _ RightsGraph = (*Client)(nil)

// New creates a client from configuration. A nil logger uses slog.Default.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := schema.NewRegistry()
	if cfg.Schema.OverlayPath != "" {
		if err := registry.LoadOverlay(cfg.Schema.OverlayPath); err != nil {
			return nil, err
		}
	}

	emb, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := hypergraph.New(docstore.NewMemory(), registry, hypergraph.WithLogger(logger))
	index := vecindex.NewMemory(emb.Dimensions(), 1)

	cache, err := resolver.OpenCache(cfg.Resolver.CachePath,
		time.Duration(cfg.Resolver.CacheTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	res := resolver.New(store, emb, index, cache, resolver.Config{
		HighThreshold:   cfg.Resolver.HighThreshold,
		LowThreshold:    cfg.Resolver.LowThreshold,
		YearTolerance:   cfg.Resolver.YearTolerance,
		FallbackCeiling: cfg.Resolver.FallbackCeiling,
		TopK:            cfg.Resolver.TopK,
	}, logger)

	pipelineOpts := []ingest.Option{
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithWorkers(cfg.Ingest.Workers),
	}
	if cfg.Ingest.CheckpointDir != "" {
		cs, err := ingest.NewCheckpointStore(cfg.Ingest.CheckpointDir)
		if err != nil {
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, ingest.WithCheckpoints(cs))
	}
	if cfg.Ingest.AuditDir != "" {
		aw, err := ingest.NewAuditWriter(cfg.Ingest.AuditDir)
		if err != nil {
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, ingest.WithAudit(aw))
	}

	return &Client{
		config:   cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		embedder: emb,
		index:    index,
		cache:    cache,
		resolver: res,
		queries:  query.New(store, emb, index, logger),
		pipeline: ingest.New(res, store, logger, pipelineOpts...),
	}, nil
}

// buildEmbedder assembles the embedding client stack for the configured
// provider: retries always, circuit breaking when enabled.
func buildEmbedder(cfg *config.Config, logger *slog.Logger) (embedder.Client, error) {
	embCfg := &embedder.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	}

	var client embedder.Client
	switch cfg.Embedding.Provider {
	case "openai":
		client = embedder.NewOpenAIClient(embCfg)
	case "local", "":
		local, err := embedder.NewLocalClient(embCfg)
		if err != nil {
			return nil, err
		}
		client = local
	case "hashing":
		client = embedder.NewHashingClient(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	client = embedder.NewRetryClient(client, nil, logger)
	if cfg.CircuitBreaker.Enabled {
		client = embedder.NewBreakerClient(client, embedder.BreakerConfig{
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
		}, logger)
	}
	return client, nil
}

// Schema returns the relation-type registry.
func (c *Client) Schema() *schema.Registry {
	return c.registry
}

// GetNode implements CatalogReader.
func (c *Client) GetNode(ctx context.Context, canonicalID string) (*types.Node, error) {
	return c.store.GetNode(ctx, canonicalID)
}

// FindNodeByExternalID implements CatalogReader.
func (c *Client) FindNodeByExternalID(ctx context.Context, scheme, value string) (*types.Node, error) {
	return c.store.FindNodeByExternalID(ctx, scheme, value)
}

// SemanticSearch implements CatalogReader.
func (c *Client) SemanticSearch(ctx context.Context, text string, k int) (*query.SemanticResult, error) {
	return c.queries.Semantic(ctx, text, k, 0)
}

// StructuredQuery implements CatalogReader.
func (c *Client) StructuredQuery(ctx context.Context, filter query.Filter, sortBy query.SortField, desc bool, limit int, cursor string) (*query.Page, error) {
	return c.queries.Structured(ctx, filter, sortBy, desc, limit, cursor)
}

// PutHyperedge implements RightsManager.
func (c *Client) PutHyperedge(ctx context.Context, edge *types.Hyperedge) (*hypergraph.PutResult, error) {
	return c.store.PutHyperedge(ctx, edge)
}

// GetHyperedge implements RightsManager.
func (c *Client) GetHyperedge(ctx context.Context, id string) (*types.Hyperedge, error) {
	return c.store.GetHyperedge(ctx, id)
}

// GetHyperedges implements RightsManager.
func (c *Client) GetHyperedges(ctx context.Context, filter hypergraph.Filter, asOfValid, asOfTx *time.Time) ([]*types.Hyperedge, error) {
	return c.store.GetHyperedges(ctx, filter, asOfValid, asOfTx)
}

// ReviseHyperedge implements RightsManager.
func (c *Client) ReviseHyperedge(ctx context.Context, id string, replacement *types.Hyperedge, closeAt *time.Time) (*hypergraph.PutResult, error) {
	return c.store.ReviseHyperedge(ctx, id, replacement, closeAt)
}

// CloseHyperedge implements RightsManager.
func (c *Client) CloseHyperedge(ctx context.Context, id string, at time.Time) error {
	return c.store.CloseHyperedge(ctx, id, at)
}

// ResolveRecord implements Ingestor.
func (c *Client) ResolveRecord(ctx context.Context, rec *resolver.Record) (*types.Resolution, error) {
	return c.resolver.Resolve(ctx, rec)
}

// Ingest implements Ingestor.
func (c *Client) Ingest(ctx context.Context, runID string, src ingest.Source) (*ingest.Report, error) {
	return c.pipeline.Run(ctx, runID, src)
}

// IngestFile implements Ingestor.
func (c *Client) IngestFile(ctx context.Context, runID, path string) (*ingest.Report, error) {
	src, err := ingest.OpenJSONL(path)
	if err != nil {
		return nil, err
	}
	return c.pipeline.Run(ctx, runID, src)
}

// SupersedeNode implements RightsGraph.
func (c *Client) SupersedeNode(ctx context.Context, loserID, winnerID string) error {
	return c.store.SupersedeNode(ctx, loserID, winnerID)
}

// Close implements RightsGraph.
func (c *Client) Close() error {
	var firstErr error
	if err := c.embedder.Close(); err != nil {
		firstErr = err
	}
	if c.cache != nil {
		if err := c.cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
