package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aevon-lab/aevon-analytics/internal/remote"
)

// Joiner plans and executes joins between two remote entities.
type Joiner struct {
	pager  *remote.Pager
	schema SchemaProvider
	opts   Options
}

// New creates a joiner. provider may be nil, in which case requests are not
// validated against metadata and auto planning always picks the client
// strategy.
func New(pager *remote.Pager, provider SchemaProvider, opts Options) *Joiner {
	return &Joiner{
		pager:  pager,
		schema: provider,
		opts:   opts.normalized(),
	}
}

// Options returns the effective options.
func (j *Joiner) Options() Options { return j.opts }

// errLimitReached stops paging once the joined row cap is hit.
var errLimitReached = errors.New("join row limit reached")

// Join validates and plans req, then runs the chosen strategy.
func (j *Joiner) Join(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	plan, err := j.Plan(ctx, &req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RequestID:  uuid.NewString(),
		Strategy:   plan.Strategy,
		JoinType:   req.JoinType,
		PlanReason: plan.Reason,
		Records:    []remote.Record{},
	}
	slog.Info("[Join] Plan decided",
		"request_id", res.RequestID,
		"primary", req.Primary.Entity,
		"secondary", req.Secondary.Entity,
		"strategy", plan.Strategy,
		"reason", plan.Reason,
	)

	switch plan.Strategy {
	case StrategyExpand:
		err = j.expandJoin(ctx, req, plan, res)
	default:
		err = j.clientJoin(ctx, req, plan, res)
	}
	if err != nil {
		slog.Error("[Join] Join failed", "request_id", res.RequestID, "strategy", plan.Strategy, "error", err)
		return nil, fmt.Errorf("%s join %s -> %s: %w", plan.Strategy, req.Primary.Entity, req.Secondary.Entity, err)
	}

	res.JoinedCount = len(res.Records)
	res.ElapsedMs = time.Since(start).Milliseconds()
	slog.Info("[Join] Join complete",
		"request_id", res.RequestID,
		"strategy", res.Strategy,
		"primary_count", res.PrimaryCount,
		"secondary_count", res.SecondaryCount,
		"joined_count", res.JoinedCount,
		"truncated", res.Truncated,
		"elapsed_ms", res.ElapsedMs,
	)
	return res, nil
}

// emitter appends joined rows until the cap; one more row than the cap
// marks the result truncated.
type emitter struct {
	res *Result
	max int
}

func (e *emitter) emit(row remote.Record) bool {
	if len(e.res.Records) >= e.max {
		e.res.Truncated = true
		return false
	}
	e.res.Records = append(e.res.Records, row)
	return true
}

// joinPrimary emits the rows for one primary record and its matches.
func (j *Joiner) joinPrimary(out *emitter, rows rowBuilder, joinType Type, primary remote.Record, matches []remote.Record) bool {
	if !rows.flatten {
		if len(matches) == 0 && joinType == Inner {
			return true
		}
		return out.emit(rows.nested(primary, matches))
	}
	if len(matches) == 0 {
		if joinType == Inner {
			return true
		}
		return out.emit(rows.primaryOnly(primary))
	}
	for _, m := range matches {
		if !out.emit(rows.merge(primary, m)) {
			return false
		}
	}
	return true
}

// expandJoin issues one paginated primary query with the relationship
// embedded and flattens each record against its nested records.
func (j *Joiner) expandJoin(ctx context.Context, req Request, plan Plan, res *Result) error {
	nav := plan.Navigation
	res.NavigationProperty = nav.Name

	q := remote.Query{
		Entity: plan.PrimarySet,
		Filter: req.Primary.Filter,
		Select: req.Primary.Select,
		Expand: []remote.Expansion{{Name: nav.Name, Select: req.Secondary.Select, Filter: req.Secondary.Filter}},
	}
	rows := j.rowBuilder(req, "")
	out := &emitter{res: res, max: req.MaxRecords}

	stats, err := j.pager.FetchAllSequential(ctx, q.Path(), req.MaxRecords, func(page *remote.Page) error {
		for _, record := range page.Records {
			res.PrimaryCount++
			nested := nestedRecords(record[nav.Name])
			res.SecondaryCount += len(nested)
			primary := copyRecord(record, nav.Name)
			if !j.joinPrimary(out, rows, req.JoinType, primary, nested) {
				return errLimitReached
			}
		}
		return nil
	})
	res.PagesFetched = stats.PagesFetched
	if stats.Truncated {
		res.Truncated = true
	}
	if err != nil && !errors.Is(err, errLimitReached) {
		return err
	}
	return nil
}

// clientJoin fetches the primary side, then the secondary side (restricted
// by an IN filter when few distinct keys exist), indexes the secondary
// records by key and probes the index with each primary record.
func (j *Joiner) clientJoin(ctx context.Context, req Request, plan Plan, res *Result) error {
	var primaries []remote.Record
	pq := remote.Query{Entity: plan.PrimarySet, Filter: req.Primary.Filter, Select: withKey(req.Primary.Select, req.Primary.Key)}
	pstats, err := j.pager.FetchAllSequential(ctx, pq.Path(), req.MaxRecords, func(page *remote.Page) error {
		for _, r := range page.Records {
			if len(primaries) >= req.MaxRecords {
				res.Truncated = true
				break
			}
			primaries = append(primaries, r)
		}
		return nil
	})
	res.PagesFetched = pstats.PagesFetched
	if err != nil {
		return fmt.Errorf("primary fetch: %w", err)
	}
	if pstats.Truncated {
		res.Truncated = true
	}
	res.PrimaryCount = len(primaries)

	keys := distinctKeys(primaries, req.Primary.Key)
	index := newMultiMap()
	if len(keys) > 0 {
		filter := req.Secondary.Filter
		if len(keys) < j.opts.InFilterThreshold {
			filter = remote.AndFilters(req.Secondary.Filter, remote.InFilter(req.Secondary.Key, keys))
			res.InFilterApplied = true
		}
		limit := req.MaxRecords * j.opts.SecondaryMultiplier
		sq := remote.Query{Entity: plan.SecondarySet, Filter: filter, Select: withKey(req.Secondary.Select, req.Secondary.Key)}

		sstats, err := j.pager.FetchAllSequential(ctx, sq.Path(), limit, func(page *remote.Page) error {
			for _, r := range page.Records {
				if index.size >= limit {
					break
				}
				index.add(r[req.Secondary.Key], r)
			}
			return nil
		})
		res.PagesFetched += sstats.PagesFetched
		if err != nil {
			return fmt.Errorf("secondary fetch: %w", err)
		}
		if sstats.Truncated {
			slog.Warn("[Join] Secondary scan hit its cap; matches may be missing",
				"secondary", req.Secondary.Entity, "limit", limit)
			res.Truncated = true
		}
		res.SecondaryCount = index.size
	}

	omit := ""
	if req.Secondary.Key == req.Primary.Key {
		omit = req.Secondary.Key
	}
	rows := j.rowBuilder(req, omit)
	out := &emitter{res: res, max: req.MaxRecords}
	for _, p := range primaries {
		if !j.joinPrimary(out, rows, req.JoinType, p, index.get(p[req.Primary.Key])) {
			break
		}
	}
	return nil
}

func (j *Joiner) rowBuilder(req Request, omitKey string) rowBuilder {
	return rowBuilder{
		prefix:    req.Secondary.Entity + j.opts.PrefixSeparator,
		nestUnder: req.Secondary.Entity,
		flatten:   req.flatten(),
		omitKey:   omitKey,
	}
}

// withKey makes sure an explicit projection still carries the join key.
func withKey(sel []string, key string) []string {
	if len(sel) == 0 {
		return nil
	}
	for _, f := range sel {
		if f == key {
			return sel
		}
	}
	return append(append([]string(nil), sel...), key)
}
