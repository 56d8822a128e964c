package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
	"github.com/aevon-lab/aevon-analytics/internal/schema"
)

// EntityResolver maps a logical entity name onto the collection path the
// source serves it under.
type EntityResolver interface {
	EntitySet(ctx context.Context, entity string) (string, error)
}

// Aggregator runs declarative aggregations as a streaming fold over
// paginated fetches. Memory is bounded by the number of groups, not records.
type Aggregator struct {
	pager    *remote.Pager
	resolver EntityResolver
	opts     Options
}

// New creates an aggregator. resolver may be nil, in which case entity names
// are used as collection paths verbatim.
func New(pager *remote.Pager, resolver EntityResolver, opts Options) *Aggregator {
	return &Aggregator{
		pager:    pager,
		resolver: resolver,
		opts:     opts.normalized(),
	}
}

// Options returns the effective options.
func (a *Aggregator) Options() Options { return a.opts }

// outcome is what a single strategy produced.
type outcome struct {
	acc           *accumulator
	pages         int
	capReached    bool
	partial       bool
	partialReason string
	sampled       bool
	sampleSize    int
	scale         coreagg.Scale
	total         *int64
}

// Aggregate validates req, decides a plan and executes its strategies in
// order until one succeeds.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entitySet, err := a.entitySet(ctx, req.Entity)
	if err != nil {
		return nil, err
	}

	mode := req.Mode()
	var probe Probe
	if mode == ModeSampling {
		probe = a.probe(ctx, req, entitySet)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	plan := DecidePlan(mode, probe, a.opts)

	progress := Progress{
		RequestID:  uuid.NewString(),
		Mode:       mode,
		PlanReason: plan.Reason,
		TotalCount: plan.TotalCount,
	}
	slog.Info("[Aggregator] Plan decided",
		"request_id", progress.RequestID,
		"entity", req.Entity,
		"mode", mode,
		"strategies", plan.Strategies,
		"reason", plan.Reason,
	)

	var lastErr error
	for i, strategy := range plan.Strategies {
		out, err := a.execute(ctx, strategy, req, entitySet, plan)
		if err == nil {
			progress.Attempts = append(progress.Attempts, Attempt{Strategy: strategy, Outcome: outcomeOK})
			progress.Strategy = strategy
			return a.respond(req, out, progress, start), nil
		}

		progress.Attempts = append(progress.Attempts, Attempt{Strategy: strategy, Outcome: outcomeFailed, Error: err.Error()})
		lastErr = err
		if ctx.Err() != nil || i == len(plan.Strategies)-1 {
			break
		}
		// A sampled scan can be rejected for its $skip offsets alone, so any
		// failure there still leaves the capped scan worth trying.
		if strategy != StrategySampled && remote.IsPermanent(err) {
			break
		}
		slog.Warn("[Aggregator] Strategy failed, falling back",
			"request_id", progress.RequestID,
			"strategy", strategy,
			"next", plan.Strategies[i+1],
			"error", err,
		)
	}

	slog.Error("[Aggregator] Aggregation failed",
		"request_id", progress.RequestID,
		"entity", req.Entity,
		"attempts", len(progress.Attempts),
		"error", lastErr,
	)
	return nil, fmt.Errorf("aggregate %s: %w", req.Entity, lastErr)
}

func (a *Aggregator) entitySet(ctx context.Context, entity string) (string, error) {
	if a.resolver == nil {
		return entity, nil
	}
	set, err := a.resolver.EntitySet(ctx, entity)
	if errors.Is(err, schema.ErrNotFound) {
		// The catalog may describe only part of the service; the remote
		// source has the final word on unknown collections.
		slog.Debug("[Aggregator] Entity not in catalog, using name as entity set", "entity", entity)
		return entity, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve entity %s: %w", entity, err)
	}
	return set, nil
}

// probe asks the source for the filtered total without reading the data.
func (a *Aggregator) probe(ctx context.Context, req Request, entitySet string) Probe {
	q := remote.Query{Entity: entitySet, Filter: req.Filter, Top: 1, Count: true}
	page, err := a.pager.FetchPage(ctx, q.Path())
	if err != nil {
		slog.Warn("[Aggregator] Count probe failed", "entity", req.Entity, "error", err)
		return Probe{Attempted: true, Err: err}
	}
	return Probe{Attempted: true, TotalCount: page.TotalCount}
}

func (a *Aggregator) execute(ctx context.Context, strategy Strategy, req Request, entitySet string, plan Plan) (*outcome, error) {
	switch strategy {
	case StrategyCapped:
		return a.runCapped(ctx, req, entitySet, a.opts.DefaultRecordCap)
	case StrategyAccurate:
		return a.runAccurate(ctx, req, entitySet)
	case StrategySampled:
		if plan.TotalCount == nil {
			return nil, errors.New("sampling requires a known total count")
		}
		return a.runSampled(ctx, req, entitySet, *plan.TotalCount)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// foldBounded folds at most limit records (0 means unbounded) across pages.
func foldBounded(acc *accumulator, limit int) remote.PageHandler {
	base := acc.records
	return func(page *remote.Page) error {
		records := page.Records
		if limit > 0 {
			remaining := limit - (acc.records - base)
			if remaining <= 0 {
				return nil
			}
			if len(records) > remaining {
				records = records[:remaining]
			}
		}
		acc.fold(records)
		return nil
	}
}

func (a *Aggregator) runCapped(ctx context.Context, req Request, entitySet string, limit int) (*outcome, error) {
	acc := newAccumulator(req.Specs, req.GroupBy)
	q := remote.Query{Entity: entitySet, Filter: req.Filter, Select: req.selectFields(), Top: limit, Count: true}
	stats, err := a.pager.FetchAllSequential(ctx, q.Path(), limit, foldBounded(acc, limit))
	if err != nil {
		return nil, err
	}
	capReached := stats.Truncated
	if stats.TotalCount != nil && *stats.TotalCount > int64(acc.records) {
		capReached = true
	}
	return &outcome{acc: acc, pages: stats.PagesFetched, capReached: capReached, scale: coreagg.Unit, total: stats.TotalCount}, nil
}

// runAccurate scans every page. If retries run out mid-stream after at least
// one record was folded, the partial state is returned and flagged.
func (a *Aggregator) runAccurate(ctx context.Context, req Request, entitySet string) (*outcome, error) {
	acc := newAccumulator(req.Specs, req.GroupBy)
	q := remote.Query{Entity: entitySet, Filter: req.Filter, Select: req.selectFields(), Count: true}
	stats, err := a.pager.FetchAllSequential(ctx, q.Path(), 0, foldBounded(acc, 0))
	out := &outcome{acc: acc, pages: stats.PagesFetched, scale: coreagg.Unit, total: stats.TotalCount}
	if err != nil {
		if acc.records == 0 || !errors.Is(err, remote.ErrRetriesExhausted) || ctx.Err() != nil {
			return nil, err
		}
		slog.Warn("[Aggregator] Returning partial result",
			"entity", req.Entity,
			"records", acc.records,
			"pages", stats.PagesFetched,
			"error", err,
		)
		out.partial = true
		out.partialReason = err.Error()
	}
	return out, nil
}

// runSampled reads evenly spaced chunks across the filtered range and scales
// additive metrics by total/sampled.
func (a *Aggregator) runSampled(ctx context.Context, req Request, entitySet string, total int64) (*outcome, error) {
	acc := newAccumulator(req.Specs, req.GroupBy)
	offsets, chunkSize := SampleOffsets(total, a.opts.SampleSize, a.opts.SampleChunks)
	pages := 0
	for i, offset := range offsets {
		q := remote.Query{Entity: entitySet, Filter: req.Filter, Select: req.selectFields(), Skip: int(offset), Top: chunkSize}
		stats, err := a.pager.FetchAllSequential(ctx, q.Path(), chunkSize, foldBounded(acc, chunkSize))
		pages += stats.PagesFetched
		if err != nil {
			return nil, fmt.Errorf("sample chunk %d at offset %d: %w", i+1, offset, err)
		}
	}
	if acc.records == 0 {
		return nil, errors.New("sample returned no records")
	}
	return &outcome{
		acc:        acc,
		pages:      pages,
		sampled:    true,
		sampleSize: acc.records,
		scale:      coreagg.Scale{Total: total, Sampled: int64(acc.records)},
		total:      &total,
	}, nil
}

func (a *Aggregator) respond(req Request, out *outcome, progress Progress, start time.Time) *Response {
	results := out.acc.finalize(out.scale)
	sortResults(results, req.OrderBy, req.Descending)
	if req.Top > 0 && len(results) > req.Top {
		results = results[:req.Top]
	}

	progress.PagesFetched = out.pages
	progress.RecordsProcessed = out.acc.records
	if progress.TotalCount == nil {
		progress.TotalCount = out.total
	}
	if t := progress.TotalCount; t != nil && *t > 0 {
		pct := float64(out.acc.records) / float64(*t) * 100
		if pct > 100 {
			pct = 100
		}
		progress.CoveragePercent = &pct
	}
	progress.CapReached = out.capReached
	progress.IsPartial = out.partial
	progress.PartialReason = out.partialReason
	progress.Sampled = out.sampled
	if out.sampled {
		progress.SampleSize = out.sampleSize
		progress.ScaleFactor = out.scale.Factor()
	}
	progress.GroupCount = len(results)
	progress.ElapsedMs = time.Since(start).Milliseconds()

	slog.Info("[Aggregator] Aggregation complete",
		"request_id", progress.RequestID,
		"entity", req.Entity,
		"strategy", progress.Strategy,
		"records", progress.RecordsProcessed,
		"pages", progress.PagesFetched,
		"groups", progress.GroupCount,
		"partial", progress.IsPartial,
		"elapsed_ms", progress.ElapsedMs,
	)
	return &Response{Results: results, Progress: progress}
}
