package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph"
	"github.com/cinelex/rightsgraph/pkg/query"
	"github.com/cinelex/rightsgraph/pkg/server/dto"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// CatalogHandler handles node reads and search requests
type CatalogHandler struct {
	client rightsgraph.RightsGraph
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(client rightsgraph.RightsGraph) *CatalogHandler {
	return &CatalogHandler{client: client}
}

// Search handles POST /api/v1/search
func (h *CatalogHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	res, err := h.client.SemanticSearch(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	hits := make([]dto.SearchHit, 0, len(res.Items))
	for _, item := range res.Items {
		hits = append(hits, dto.SearchHit{Node: item.Node, Score: item.Score})
	}
	c.JSON(http.StatusOK, dto.SearchResponse{
		Items:      hits,
		SearchMode: string(res.Mode),
		Total:      len(hits),
	})
}

// GetNode handles GET /api/v1/nodes/:id
func (h *CatalogHandler) GetNode(c *gin.Context) {
	node, err := h.client.GetNode(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// LookupExternalID handles GET /api/v1/lookup?scheme=imdb&value=tt0133093
func (h *CatalogHandler) LookupExternalID(c *gin.Context) {
	scheme := c.Query("scheme")
	value := c.Query("value")
	if scheme == "" || value == "" {
		badRequest(c, "scheme and value query parameters are required")
		return
	}
	node, err := h.client.FindNodeByExternalID(c.Request.Context(), scheme, value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

// ListNodes handles GET /api/v1/nodes - structured queries with cursor
// pagination.
func (h *CatalogHandler) ListNodes(c *gin.Context) {
	filter := query.Filter{
		Kind:        types.NodeKind(c.Query("kind")),
		TitlePrefix: c.Query("title_prefix"),
	}
	if v := c.Query("year_from"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "year_from must be an integer")
			return
		}
		filter.YearFrom = year
	}
	if v := c.Query("year_to"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "year_to must be an integer")
			return
		}
		filter.YearTo = year
	}
	if v := c.Query("provisional"); v != "" {
		provisional := v == "true"
		filter.Provisional = &provisional
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}

	page, err := h.client.StructuredQuery(c.Request.Context(), filter,
		query.SortField(c.Query("sort")), c.Query("desc") == "true", limit, c.Query("cursor"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
