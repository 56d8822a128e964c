package join

import "github.com/aevon-lab/aevon-analytics/internal/remote"

// Type is the join type.
type Type string

const (
	Inner Type = "inner"
	Left  Type = "left"
)

// Strategy selects how the join is executed.
type Strategy string

const (
	StrategyAuto   Strategy = "auto"
	StrategyExpand Strategy = "expand"
	StrategyClient Strategy = "client"
)

// EntitySource is one side of a join.
type EntitySource struct {
	Entity string   `json:"entity"`
	Key    string   `json:"key"`
	Filter string   `json:"filter,omitempty"`
	Select []string `json:"select,omitempty"`
}

// Request joins Primary to Secondary on Primary.Key = Secondary.Key.
type Request struct {
	Primary    EntitySource `json:"primary"`
	Secondary  EntitySource `json:"secondary"`
	JoinType   Type         `json:"join_type,omitempty"`
	Strategy   Strategy     `json:"strategy,omitempty"`
	MaxRecords int          `json:"max_records,omitempty"`
	// Flatten defaults to true; false nests matches under the secondary
	// entity name, one row per primary record.
	Flatten *bool `json:"flatten,omitempty"`
}

func (r Request) flatten() bool {
	return r.Flatten == nil || *r.Flatten
}

// Result is the joined output plus diagnostics.
type Result struct {
	RequestID          string          `json:"request_id"`
	Records            []remote.Record `json:"records"`
	Strategy           Strategy        `json:"strategy"`
	JoinType           Type            `json:"join_type"`
	PlanReason         string          `json:"plan_reason,omitempty"`
	NavigationProperty string          `json:"navigation_property,omitempty"`
	InFilterApplied    bool            `json:"in_filter_applied,omitempty"`
	PrimaryCount       int             `json:"primary_count"`
	SecondaryCount     int             `json:"secondary_count"`
	JoinedCount        int             `json:"joined_count"`
	PagesFetched       int             `json:"pages_fetched"`
	ElapsedMs          int64           `json:"elapsed_ms"`
	Truncated          bool            `json:"truncated"`
}
