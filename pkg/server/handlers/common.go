package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cinelex/rightsgraph/pkg/server/dto"
	"github.com/cinelex/rightsgraph/pkg/types"
)

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		verr *types.ValidationError
		serr *types.SchemaError
		derr *types.DimensionError
	)
	switch {
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: "not_found", Message: err.Error(), Code: http.StatusNotFound})
	case errors.As(err, &verr), errors.As(err, &serr), errors.As(err, &derr),
		errors.Is(err, types.ErrInvalidInterval),
		errors.Is(err, types.ErrEmptyTitle),
		errors.Is(err, types.ErrUnknownKind):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: "invalid_request", Message: err.Error(), Code: http.StatusBadRequest})
	case errors.Is(err, types.ErrProviderUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error: "provider_unavailable", Message: err.Error(), Code: http.StatusServiceUnavailable})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal_error", Message: err.Error(), Code: http.StatusInternalServerError})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error: "invalid_request", Message: msg, Code: http.StatusBadRequest})
}
