package rightsgraph

import (
	"context"
	"time"

	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/ingest"
	"github.com/cinelex/rightsgraph/pkg/query"
	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// This file defines focused interfaces; the RightsGraph interface composes
// them. Consumers should depend on the smallest interface that meets their
// needs.

// CatalogReader provides read-only access to canonical nodes and search.
type CatalogReader interface {
	// GetNode retrieves a canonical node by ID.
	GetNode(ctx context.Context, canonicalID string) (*types.Node, error)

	// FindNodeByExternalID looks a node up by a structured identifier,
	// following alias links of superseded nodes.
	FindNodeByExternalID(ctx context.Context, scheme, value string) (*types.Node, error)

	// SemanticSearch ranks nodes against free text, degrading to the
	// deterministic lexical ranking when the embedding provider is down.
	SemanticSearch(ctx context.Context, text string, k int) (*query.SemanticResult, error)

	// StructuredQuery runs a filtered, sorted, cursor-paginated query.
	StructuredQuery(ctx context.Context, filter query.Filter, sortBy query.SortField, desc bool, limit int, cursor string) (*query.Page, error)
}

// RightsManager provides hyperedge reads and writes.
type RightsManager interface {
	// PutHyperedge validates and records a new fact version. Exclusive
	// claims are checked for overlaps; conflicts are reported, not
	// rejected.
	PutHyperedge(ctx context.Context, edge *types.Hyperedge) (*hypergraph.PutResult, error)

	// GetHyperedge retrieves one hyperedge version by ID.
	GetHyperedge(ctx context.Context, id string) (*types.Hyperedge, error)

	// GetHyperedges queries hyperedges as of a valid time and a
	// transaction time; nil means "now" for either.
	GetHyperedges(ctx context.Context, filter hypergraph.Filter, asOfValid, asOfTx *time.Time) ([]*types.Hyperedge, error)

	// ReviseHyperedge closes an existing version and records a replacement
	// in one step.
	ReviseHyperedge(ctx context.Context, id string, replacement *types.Hyperedge, closeAt *time.Time) (*hypergraph.PutResult, error)

	// CloseHyperedge ends a fact's validity window at the given time.
	CloseHyperedge(ctx context.Context, id string, at time.Time) error
}

// Ingestor provides record resolution and bulk loading.
type Ingestor interface {
	// ResolveRecord maps one record to a canonical node.
	ResolveRecord(ctx context.Context, rec *resolver.Record) (*types.Resolution, error)

	// Ingest runs a bulk load from a source.
	Ingest(ctx context.Context, runID string, src ingest.Source) (*ingest.Report, error)

	// IngestFile runs a bulk load from a JSONL file.
	IngestFile(ctx context.Context, runID, path string) (*ingest.Report, error)
}

// RightsGraph is the full catalog service.
type RightsGraph interface {
	CatalogReader
	RightsManager
	Ingestor

	// SupersedeNode merges a duplicate node into its canonical winner,
	// leaving an alias link behind.
	SupersedeNode(ctx context.Context, loserID, winnerID string) error

	// Close releases held resources.
	Close() error
}
