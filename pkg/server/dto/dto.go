// Package dto defines the wire shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// SearchHit is one semantic search result.
type SearchHit struct {
	Node  *types.Node `json:"node"`
	Score float64     `json:"score"`
}

// SearchResponse reports the hits and which ranking path served them.
type SearchResponse struct {
	Items      []SearchHit `json:"items"`
	SearchMode string      `json:"search_mode"`
	Total      int         `json:"total"`
}

// EdgeRequest is the body of POST /api/v1/edges.
type EdgeRequest struct {
	Relation     string              `json:"relation" binding:"required"`
	Participants []types.Participant `json:"participants" binding:"required"`
	ValidFrom    time.Time           `json:"valid_from" binding:"required"`
	ValidTo      *time.Time          `json:"valid_to,omitempty"`
	Props        map[string]any      `json:"props,omitempty"`
	Weight       float64             `json:"weight,omitempty"`
}

// Hyperedge converts the request into a store edge.
func (r *EdgeRequest) Hyperedge() *types.Hyperedge {
	return &types.Hyperedge{
		Relation:     r.Relation,
		Participants: r.Participants,
		ValidFrom:    r.ValidFrom,
		ValidTo:      r.ValidTo,
		Props:        r.Props,
		Weight:       r.Weight,
	}
}

// EdgeResponse is the result of an edge write. Conflicts lists overlapping
// exclusive claims recorded alongside the write.
type EdgeResponse struct {
	Edge      *types.Hyperedge   `json:"edge"`
	Conflicts []*types.Hyperedge `json:"conflicts,omitempty"`
}

// CloseEdgeRequest is the body of POST /api/v1/edges/:id/close.
type CloseEdgeRequest struct {
	At time.Time `json:"at" binding:"required"`
}

// ReviseEdgeRequest is the body of POST /api/v1/edges/:id/revise.
type ReviseEdgeRequest struct {
	Replacement EdgeRequest `json:"replacement" binding:"required"`
	CloseAt     *time.Time  `json:"close_at,omitempty"`
}

// IngestFileRequest is the body of POST /api/v1/ingest/file.
type IngestFileRequest struct {
	RunID string `json:"run_id" binding:"required"`
	Path  string `json:"path" binding:"required"`
}

// IngestFileResponse summarizes a completed run.
type IngestFileResponse struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Stored    int    `json:"stored"`
	Failed    int    `json:"failed"`
	Duration  string `json:"duration"`
}

// ResolveRequest is the body of POST /api/v1/ingest/resolve.
type ResolveRequest struct {
	Kind        string            `json:"kind"`
	Title       string            `json:"title" binding:"required"`
	Year        int               `json:"year,omitempty"`
	Overview    string            `json:"overview,omitempty"`
	Tagline     string            `json:"tagline,omitempty"`
	Popularity  float64           `json:"popularity,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
