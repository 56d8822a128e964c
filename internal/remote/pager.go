package remote

import (
	"context"
	"fmt"
	"log/slog"
)

// FetchStats summarizes one sequential scan.
type FetchStats struct {
	PagesFetched   int
	RecordsFetched int
	Truncated      bool
	// TotalCount is the server reported count from the first page, if any.
	TotalCount *int64
}

// PageHandler receives pages in cursor order. Returning an error stops the scan.
type PageHandler func(page *Page) error

// Pager issues paginated fetches through a Retrier. Pages of one logical
// query are fetched strictly in order: the continuation cursor is opaque.
type Pager struct {
	retrier *Retrier
}

// NewPager creates a pager.
func NewPager(retrier *Retrier) *Pager {
	return &Pager{retrier: retrier}
}

// FetchPage fetches the page at cursor (a query path or a nextLink).
func (p *Pager) FetchPage(ctx context.Context, cursor string) (*Page, error) {
	raw, err := p.retrier.Fetch(ctx, cursor)
	if err != nil {
		return nil, err
	}
	return &Page{
		Records:    raw.Value,
		NextCursor: raw.NextLink,
		TotalCount: raw.Count,
	}, nil
}

// FetchAllSequential follows continuation cursors from initial until the
// source is exhausted or maxRecords (when > 0) is reached. The page that
// crosses the bound is delivered whole; callers slice final output.
// On error the stats collected so far are returned alongside it.
func (p *Pager) FetchAllSequential(ctx context.Context, initial string, maxRecords int, onPage PageHandler) (FetchStats, error) {
	var stats FetchStats
	cursor := initial
	for cursor != "" {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := p.FetchPage(ctx, cursor)
		if err != nil {
			return stats, fmt.Errorf("fetch page %d: %w", stats.PagesFetched+1, err)
		}
		if stats.PagesFetched == 0 {
			stats.TotalCount = page.TotalCount
		}
		stats.PagesFetched++
		stats.RecordsFetched += len(page.Records)
		pagesFetched.Inc()

		if err := onPage(page); err != nil {
			return stats, err
		}

		slog.Debug("[Pager] Page folded",
			"page", stats.PagesFetched,
			"records", len(page.Records),
			"total_records", stats.RecordsFetched,
		)

		if maxRecords > 0 && stats.RecordsFetched >= maxRecords {
			stats.Truncated = page.NextCursor != "" || stats.RecordsFetched > maxRecords
			return stats, nil
		}
		cursor = page.NextCursor
	}
	return stats, nil
}
