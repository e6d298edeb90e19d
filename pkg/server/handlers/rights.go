package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/hypergraph"
	"github.com/cinelex/rightsgraph/pkg/server/dto"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// RightsHandler handles hyperedge reads and writes
type RightsHandler struct {
	client rightsgraph.RightsGraph
}

// NewRightsHandler creates a new rights handler
func NewRightsHandler(client rightsgraph.RightsGraph) *RightsHandler {
	return &RightsHandler{client: client}
}

// PutEdge handles POST /api/v1/edges. A write that collides with existing
// exclusive claims still succeeds; the response carries the conflicts.
func (h *RightsHandler) PutEdge(c *gin.Context) {
	var req dto.EdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.client.PutHyperedge(c.Request.Context(), req.Hyperedge())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.EdgeResponse{
		Edge:      result.Edge,
		Conflicts: result.Conflicts,
	})
}

// GetEdge handles GET /api/v1/edges/:id
func (h *RightsHandler) GetEdge(c *gin.Context) {
	edge, err := h.client.GetHyperedge(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

// ListEdges handles GET /api/v1/edges - bitemporal queries. as_of_valid and
// as_of_tx are RFC 3339 timestamps; both default to now.
func (h *RightsHandler) ListEdges(c *gin.Context) {
	filter := hypergraph.Filter{
		Relation: c.Query("relation"),
		NodeID:   c.Query("node_id"),
		Role:     c.Query("role"),
	}
	if v := c.Query("status"); v != "" {
		filter.Statuses = []types.EdgeStatus{types.EdgeStatus(v)}
	}

	asOfValid, ok := parseTimeParam(c, "as_of_valid")
	if !ok {
		return
	}
	asOfTx, ok := parseTimeParam(c, "as_of_tx")
	if !ok {
		return
	}

	edges, err := h.client.GetHyperedges(c.Request.Context(), filter, asOfValid, asOfTx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"edges": edges, "total": len(edges)})
}

// ReviseEdge handles POST /api/v1/edges/:id/revise
func (h *RightsHandler) ReviseEdge(c *gin.Context) {
	var req dto.ReviseEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.client.ReviseHyperedge(c.Request.Context(), c.Param("id"),
		req.Replacement.Hyperedge(), req.CloseAt)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.EdgeResponse{
		Edge:      result.Edge,
		Conflicts: result.Conflicts,
	})
}

// CloseEdge handles POST /api/v1/edges/:id/close
func (h *RightsHandler) CloseEdge(c *gin.Context) {
	var req dto.CloseEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.client.CloseHyperedge(c.Request.Context(), c.Param("id"), req.At); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		badRequest(c, name+" must be an RFC 3339 timestamp")
		return nil, false
	}
	return &t, true
}
