// Package query serves read traffic over the catalog: semantic search with
// a deterministic lexical fallback, and structured queries with cursor
// pagination. Reads never block writes; results are a consistent snapshot
// taken at scan time.
package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cinelex/rightsgraph/pkg/embedder"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/types"
	"github.com/cinelex/rightsgraph/pkg/vecindex"
)

// ScoredNode is one semantic search hit with its ranking score.
type ScoredNode struct {
	Node  *types.Node `json:"node"`
	Score float64     `json:"score"`
}

// SemanticResult carries the hits and reports which ranking path served
// them, so callers can tell a degraded response from a native one.
type SemanticResult struct {
	Items []ScoredNode     `json:"items"`
	Mode  types.SearchMode `json:"search_mode"`
}

// Engine answers catalog queries.
type Engine struct {
	store    *hypergraph.Store
	embedder embedder.Client
	index    vecindex.Index
	logger   *slog.Logger
}

// New creates a query engine.
func New(store *hypergraph.Store, emb embedder.Client, index vecindex.Index, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, embedder: emb, index: index, logger: logger}
}

// Semantic ranks nodes against a free-text query by embedding similarity,
// dropping hits below minSim. When the embedding provider is unavailable it
// degrades to the lexical ranking instead of failing, and says so in the
// result's Mode.
func (e *Engine) Semantic(ctx context.Context, text string, k int, minSim float64) (*SemanticResult, error) {
	if text == "" {
		return nil, types.NewValidationError("query text is empty")
	}
	if k <= 0 {
		k = 10
	}

	vector, err := e.embedder.EmbedSingle(ctx, text)
	if err != nil {
		if errors.Is(err, types.ErrProviderUnavailable) {
			e.logger.Warn("embedding provider unavailable, serving lexical fallback", "query", text)
			return e.lexical(ctx, text, k)
		}
		return nil, err
	}

	matches, err := e.index.Query(ctx, vector, k)
	if err != nil {
		if errors.Is(err, types.ErrProviderUnavailable) {
			return e.lexical(ctx, text, k)
		}
		return nil, err
	}

	items := make([]ScoredNode, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < minSim {
			break
		}
		node, err := e.store.GetNode(ctx, m.NodeID)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if node.Superseded {
			continue
		}
		items = append(items, ScoredNode{Node: node, Score: m.Similarity})
	}
	return &SemanticResult{Items: items, Mode: types.SearchModeNative}, nil
}
