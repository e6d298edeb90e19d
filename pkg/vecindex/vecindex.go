// Package vecindex abstracts the vector index service: idempotent upserts
// keyed by node ID and nearest-neighbor queries ranked by cosine similarity.
// Each index generation fixes a dimensionality; vectors of any other length
// are rejected without affecting other writes. Ranking is a reproducible
// total order: similarity descending, then popularity descending, then node
// ID ascending.
package vecindex

import (
	"context"
)

// Meta is the metadata stored alongside a vector.
type Meta struct {
	Popularity float64 `json:"popularity"`
	ModelID    string  `json:"model_id"`
}

// Match is one query hit.
type Match struct {
	NodeID     string  `json:"node_id"`
	Similarity float64 `json:"similarity"`
	Popularity float64 `json:"popularity"`
}

// Index is the vector index service consumed by the resolver and the query
// engine.
type Index interface {
	// Upsert stores or replaces the vector for a node. Returns
	// types.DimensionError when the vector length does not match the
	// active generation.
	Upsert(ctx context.Context, nodeID string, vector []float32, meta Meta) error

	// Query returns the k nearest vectors by cosine similarity in the
	// package's total order.
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Dimensions is the vector length of the active generation.
	Dimensions() int

	// Generation identifies the active index generation.
	Generation() int

	// Size is the number of indexed vectors.
	Size() int
}
