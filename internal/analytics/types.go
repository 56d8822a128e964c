package analytics

import (
	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	httperr "github.com/aevon-lab/aevon-analytics/internal/core/errors"
	"github.com/aevon-lab/aevon-analytics/internal/join"
)

// BatchItem is one independent operation in a batch. Exactly one of
// Aggregate or Join must be set.
type BatchItem struct {
	ID        string               `json:"id,omitempty"`
	Aggregate *aggregation.Request `json:"aggregate,omitempty"`
	Join      *join.Request        `json:"join,omitempty"`
}

// BatchRequest is the body of POST /v1/batch.
type BatchRequest struct {
	Items []BatchItem `json:"items"`
}

// BatchItemResult carries either the item's result or its error. Index is
// the item's position in the request.
type BatchItemResult struct {
	Index     int                    `json:"index"`
	ID        string                 `json:"id,omitempty"`
	Status    int                    `json:"status"`
	Aggregate *aggregation.Response  `json:"aggregate,omitempty"`
	Join      *join.Result           `json:"join,omitempty"`
	Error     *httperr.ErrorResponse `json:"error,omitempty"`
}

// BatchResponse preserves the request's item order.
type BatchResponse struct {
	RequestID string            `json:"request_id"`
	Results   []BatchItemResult `json:"results"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	ElapsedMs int64             `json:"elapsed_ms"`
}
