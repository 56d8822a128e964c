package aggregation

import (
	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
)

// Mode is the accuracy mode requested by the caller.
type Mode string

const (
	ModeCapped   Mode = "capped"
	ModeAccurate Mode = "accurate"
	ModeSampling Mode = "sampling"
)

// Strategy is one executable scan strategy.
type Strategy string

const (
	StrategyCapped   Strategy = "capped"
	StrategyAccurate Strategy = "accurate"
	StrategySampled  Strategy = "sampled"
)

// Request is one declarative aggregation over an entity.
type Request struct {
	Entity     string         `json:"entity"`
	Specs      []coreagg.Spec `json:"aggregations"`
	Filter     string         `json:"filter,omitempty"`
	GroupBy    []string       `json:"group_by,omitempty"`
	Accurate   bool           `json:"accurate,omitempty"`
	Sampling   bool           `json:"sampling,omitempty"`
	OrderBy    string         `json:"order_by,omitempty"`
	Descending bool           `json:"descending,omitempty"`
	Top        int            `json:"top,omitempty"`
}

// Mode derives the mode from the request flags. Sampling wins over accurate
// since it already falls back to an accurate scan below the threshold.
func (r Request) Mode() Mode {
	switch {
	case r.Sampling:
		return ModeSampling
	case r.Accurate:
		return ModeAccurate
	default:
		return ModeCapped
	}
}

// Result is the finalized view of one group. A nil value means the group
// held no qualifying values for that metric.
type Result struct {
	GroupKey map[string]any      `json:"group_key,omitempty"`
	Values   map[string]*float64 `json:"values"`
}

// Value returns the metric for alias, ok false when null or absent.
func (r Result) Value(alias string) (float64, bool) {
	v := r.Values[alias]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Attempt records one strategy the executor tried.
type Attempt struct {
	Strategy Strategy `json:"strategy"`
	Outcome  string   `json:"outcome"`
	Error    string   `json:"error,omitempty"`
}

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// Progress is the diagnostic metadata returned with every aggregation.
type Progress struct {
	RequestID        string    `json:"request_id"`
	Mode             Mode      `json:"mode"`
	Strategy         Strategy  `json:"strategy"`
	Attempts         []Attempt `json:"attempts"`
	PlanReason       string    `json:"plan_reason,omitempty"`
	PagesFetched     int       `json:"pages_fetched"`
	RecordsProcessed int       `json:"records_processed"`
	TotalCount       *int64    `json:"total_count,omitempty"`
	CoveragePercent  *float64  `json:"coverage_percent,omitempty"`
	CapReached       bool      `json:"cap_reached,omitempty"`
	IsPartial        bool      `json:"is_partial,omitempty"`
	PartialReason    string    `json:"partial_reason,omitempty"`
	Sampled          bool      `json:"sampled,omitempty"`
	SampleSize       int       `json:"sample_size,omitempty"`
	ScaleFactor      float64   `json:"scale_factor,omitempty"`
	GroupCount       int       `json:"group_count"`
	ElapsedMs        int64     `json:"elapsed_ms"`
}

// Response is the payload of one aggregation.
type Response struct {
	Results  []Result `json:"results"`
	Progress Progress `json:"progress"`
}
