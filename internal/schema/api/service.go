package api

import (
	"github.com/aevon-lab/aevon-analytics/internal/schema"
	"github.com/gin-gonic/gin"
)

// Service exposes the entity metadata catalog.
type Service struct {
	registry *schema.Registry
}

// NewService creates a new catalog API service. A nil registry means the
// catalog is disabled by config; its routes then answer 503.
func NewService(reg *schema.Registry) *Service {
	return &Service{registry: reg}
}

// RegisterRoutes registers the catalog routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	entities := r.Group("/v1/entities")
	if s.registry == nil {
		entities.GET("", handleDisabled)
		entities.GET("/:name", handleDisabled)
		entities.DELETE("/cache", handleDisabled)
		return
	}

	handler := NewHandler(s.registry)
	{
		entities.GET("", handler.HandleList)
		entities.GET("/:name", handler.HandleGet)
		entities.DELETE("/cache", handler.HandleInvalidate)
	}
}
