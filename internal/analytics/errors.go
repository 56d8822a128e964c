package analytics

import (
	"context"
	"errors"
	"net/http"

	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	httperr "github.com/aevon-lab/aevon-analytics/internal/core/errors"
	"github.com/aevon-lab/aevon-analytics/internal/join"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
	"github.com/aevon-lab/aevon-analytics/internal/schema"
)

// ErrInvalidBatch marks batch requests rejected before any item runs.
var ErrInvalidBatch = errors.New("invalid batch request")

type detailer interface {
	Details() map[string]interface{}
}

// toHTTPError maps an operation error onto a status and the error envelope.
func toHTTPError(err error) (int, httperr.ErrorResponse) {
	var d detailer
	details := func() interface{} {
		if errors.As(err, &d) {
			return d.Details()
		}
		return nil
	}

	switch {
	case errors.Is(err, aggregation.ErrInvalidRequest),
		errors.Is(err, join.ErrInvalidRequest),
		errors.Is(err, ErrInvalidBatch):
		return http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   err.Error(),
			Details:   details(),
		}
	case errors.Is(err, join.ErrPlanning):
		return http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpPlanningFailedError,
			Message:   err.Error(),
			Details:   details(),
		}
	case errors.Is(err, schema.ErrNotFound):
		return http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpEntityNotFoundError,
			Message:   err.Error(),
		}
	case errors.As(err, &d):
		return http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpSchemaDefinitionError,
			Message:   err.Error(),
			Details:   d.Details(),
		}
	case errors.Is(err, remote.ErrRetriesExhausted):
		return http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpUpstreamUnavailable,
			Message:   err.Error(),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, httperr.ErrorResponse{
			ErrorType: httperr.HttpRequestCanceled,
			Message:   err.Error(),
		}
	}

	var se *remote.StatusError
	if errors.As(err, &se) {
		body := httperr.ErrorResponse{Message: err.Error()}
		if hint := se.Hint(); hint != "" {
			body.Details = map[string]interface{}{"remote_status": se.StatusCode, "hint": hint}
		}
		switch se.StatusCode {
		case http.StatusNotFound:
			body.ErrorType = httperr.HttpEntityNotFoundError
			return http.StatusNotFound, body
		case http.StatusUnauthorized, http.StatusForbidden:
			body.ErrorType = httperr.HttpUpstreamAuthError
			return http.StatusBadGateway, body
		default:
			body.ErrorType = httperr.HttpUpstreamRejected
			return http.StatusBadGateway, body
		}
	}

	return http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   err.Error(),
	}
}
