package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/aevon-analytics/internal/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/join"
)

const (
	defaultConcurrency = 5
	// MaxBatchItems bounds a single batch request.
	MaxBatchItems = 100
)

// Aggregator runs one aggregation request.
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregation.Request) (*aggregation.Response, error)
}

// Joiner runs one join request.
type Joiner interface {
	Join(ctx context.Context, req join.Request) (*join.Result, error)
}

// Service exposes the caller-facing analytics operations.
type Service struct {
	aggregator  Aggregator
	joiner      Joiner
	concurrency int
}

// NewService creates the analytics service. concurrency bounds how many batch
// items run at once.
func NewService(aggregator Aggregator, joiner Joiner, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		aggregator:  aggregator,
		joiner:      joiner,
		concurrency: concurrency,
	}
}

// Aggregate runs a single aggregation.
func (s *Service) Aggregate(ctx context.Context, req aggregation.Request) (*aggregation.Response, error) {
	return s.aggregator.Aggregate(ctx, req)
}

// JoinEntities runs a single join.
func (s *Service) JoinEntities(ctx context.Context, req join.Request) (*join.Result, error) {
	return s.joiner.Join(ctx, req)
}

// Batch runs independent items through a bounded worker pool. One item's
// failure never cancels the others; results keep the request's order.
func (s *Service) Batch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	if err := validateBatch(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp := &BatchResponse{
		RequestID: uuid.NewString(),
		Results:   make([]BatchItemResult, len(req.Items)),
	}
	slog.Info("[Batch] Starting batch", "request_id", resp.RequestID, "items", len(req.Items), "concurrency", s.concurrency)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			resp.Results[i] = s.runItem(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range resp.Results {
		if r.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	resp.ElapsedMs = time.Since(start).Milliseconds()
	slog.Info("[Batch] Batch complete",
		"request_id", resp.RequestID,
		"succeeded", resp.Succeeded,
		"failed", resp.Failed,
		"elapsed_ms", resp.ElapsedMs,
	)
	return resp, nil
}

func (s *Service) runItem(ctx context.Context, index int, item BatchItem) BatchItemResult {
	res := BatchItemResult{Index: index, ID: item.ID, Status: http.StatusOK}

	var err error
	switch {
	case item.Aggregate != nil:
		res.Aggregate, err = s.Aggregate(ctx, *item.Aggregate)
	default:
		res.Join, err = s.JoinEntities(ctx, *item.Join)
	}
	if err != nil {
		status, body := toHTTPError(err)
		res.Status = status
		res.Error = &body
		slog.Warn("[Batch] Item failed", "index", index, "id", item.ID, "status", status, "error", err)
	}
	return res
}

func validateBatch(req BatchRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidBatch)
	}
	if len(req.Items) > MaxBatchItems {
		return fmt.Errorf("%w: %d items exceeds the limit of %d", ErrInvalidBatch, len(req.Items), MaxBatchItems)
	}
	for i, item := range req.Items {
		if (item.Aggregate == nil) == (item.Join == nil) {
			return fmt.Errorf("%w: item %d must set exactly one of aggregate or join", ErrInvalidBatch, i)
		}
	}
	return nil
}
