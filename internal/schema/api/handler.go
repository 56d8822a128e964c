package api

import (
	"errors"
	"log/slog"
	"net/http"

	httperr "github.com/aevon-lab/aevon-analytics/internal/core/errors"
	"github.com/aevon-lab/aevon-analytics/internal/schema"
	"github.com/gin-gonic/gin"
)

// Handler handles entity catalog HTTP requests.
type Handler struct {
	registry *schema.Registry
}

// NewHandler creates a new catalog handler.
func NewHandler(reg *schema.Registry) *Handler {
	return &Handler{registry: reg}
}

// EntityListResponse is the body of GET /v1/entities.
type EntityListResponse struct {
	Entities []*schema.EntityType `json:"entities"`
	Count    int                  `json:"count"`
}

// InvalidateResponse is the body of DELETE /v1/entities/cache.
type InvalidateResponse struct {
	Invalidated string `json:"invalidated"`
	Cached      int    `json:"cached"`
}

// HandleList handles GET /v1/entities.
func (h *Handler) HandleList(c *gin.Context) {
	entities, err := h.registry.ListEntities(c.Request.Context())
	if err != nil {
		slog.Error("[Schema] Entity list error", "error", err)
		h.writeError(c, err)
		return
	}
	if entities == nil {
		entities = []*schema.EntityType{}
	}
	c.JSON(http.StatusOK, EntityListResponse{Entities: entities, Count: len(entities)})
}

// HandleGet handles GET /v1/entities/:name; name may be a type or entity set.
func (h *Handler) HandleGet(c *gin.Context) {
	entity, err := h.registry.Entity(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

// HandleInvalidate handles DELETE /v1/entities/cache. With ?entity=<name>
// only that entry is dropped; otherwise the whole cache is cleared.
func (h *Handler) HandleInvalidate(c *gin.Context) {
	if name := c.Query("entity"); name != "" {
		h.registry.Invalidate(name)
		c.JSON(http.StatusOK, InvalidateResponse{Invalidated: name, Cached: h.registry.CachedEntities()})
		return
	}
	h.registry.InvalidateAll()
	c.JSON(http.StatusOK, InvalidateResponse{Invalidated: "*", Cached: h.registry.CachedEntities()})
}

// handleDisabled answers every catalog route when schema.source_type is none.
func handleDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
		ErrorType: httperr.HttpSchemaDisabledError,
		Message:   "Entity metadata catalog is disabled; set schema.source_type to filesystem to enable it",
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var detailer schema.Detailer
	switch {
	case errors.Is(err, schema.ErrNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpEntityNotFoundError,
			Message:   err.Error(),
		})
	case errors.As(err, &detailer):
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpSchemaDefinitionError,
			Message:   err.Error(),
			Details:   detailer.Details(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load entity metadata",
		})
	}
}
