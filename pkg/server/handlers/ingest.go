package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/resolver"
	"github.com/cinelex/rightsgraph/pkg/server/dto"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// IngestHandler handles ingestion requests
type IngestHandler struct {
	client rightsgraph.RightsGraph
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(client rightsgraph.RightsGraph) *IngestHandler {
	return &IngestHandler{client: client}
}

// IngestFile handles POST /api/v1/ingest/file - runs a bulk load from a
// JSONL file on the server's filesystem and returns the run report.
func (h *IngestHandler) IngestFile(c *gin.Context) {
	var req dto.IngestFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	report, err := h.client.IngestFile(c.Request.Context(), req.RunID, req.Path)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.IngestFileResponse{
		RunID:     report.RunID,
		Processed: report.Processed,
		Stored:    report.Stored,
		Failed:    report.Failed,
		Duration:  report.Duration.String(),
	})
}

// Resolve handles POST /api/v1/ingest/resolve - resolves a single record
// without going through a bulk run.
func (h *IngestHandler) Resolve(c *gin.Context) {
	var req dto.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	kind := types.NodeKind(req.Kind)
	if req.Kind == "" {
		kind = types.KindAsset
	}

	res, err := h.client.ResolveRecord(c.Request.Context(), &resolver.Record{
		Kind:        kind,
		Title:       req.Title,
		Year:        req.Year,
		Overview:    req.Overview,
		Tagline:     req.Tagline,
		Popularity:  req.Popularity,
		ExternalIDs: req.ExternalIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
