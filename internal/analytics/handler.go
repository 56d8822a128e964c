package analytics

import (
	"log/slog"
	"net/http"

	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	httperr "github.com/aevon-lab/aevon-analytics/internal/core/errors"
	"github.com/aevon-lab/aevon-analytics/internal/join"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the analytics API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/aggregate", s.HandleAggregate)
	r.POST("/v1/join", s.HandleJoin)
	r.POST("/v1/batch", s.HandleBatch)
}

// HandleAggregate handles POST /v1/aggregate
func (s *Service) HandleAggregate(c *gin.Context) {
	var req aggregation.Request
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.Aggregate(c.Request.Context(), req)
	if err != nil {
		writeError(c, "aggregate", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleJoin handles POST /v1/join
func (s *Service) HandleJoin(c *gin.Context) {
	var req join.Request
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.JoinEntities(c.Request.Context(), req)
	if err != nil {
		writeError(c, "join", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleBatch handles POST /v1/batch. Item failures are reported per item
// with a 200 for the batch itself.
func (s *Service) HandleBatch(c *gin.Context) {
	var req BatchRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.Batch(c.Request.Context(), req)
	if err != nil {
		writeError(c, "batch", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON payload",
			Details:   err.Error(),
		})
		return false
	}
	return true
}

func writeError(c *gin.Context, op string, err error) {
	status, body := toHTTPError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Analytics request failed", "operation", op, "status", status, "error", err)
	} else {
		slog.Warn("Analytics request rejected", "operation", op, "status", status, "error", err)
	}
	c.JSON(status, body)
}
