package aggregation

import (
	"fmt"
	"strings"
)

// Function names an aggregation function. Values match the wire names
// accepted by the caller-facing operations.
type Function string

const (
	FuncSum           Function = "sum"
	FuncAvg           Function = "avg"
	FuncCount         Function = "count"
	FuncMin           Function = "min"
	FuncMax           Function = "max"
	FuncCountDistinct Function = "countdistinct"
	FuncP50           Function = "p50"
	FuncP90           Function = "p90"
	FuncP95           Function = "p95"
	FuncP99           Function = "p99"
)

// AllFields is the count-star field marker.
const AllFields = "*"

// ParseFunction normalizes a user supplied function name (case-insensitive,
// "count_distinct" accepted as an alias).
func ParseFunction(s string) (Function, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", "")
	fn := Function(name)
	if !ValidFunction(fn) {
		return "", fmt.Errorf("unsupported aggregation function %q", s)
	}
	return fn, nil
}

// IsAdditive reports whether the function scales linearly with sample size.
func (f Function) IsAdditive() bool {
	return f == FuncSum || f == FuncCount
}

// Percentile returns the percentile rank for P50..P99 functions.
func (f Function) Percentile() (float64, bool) {
	switch f {
	case FuncP50:
		return 50, true
	case FuncP90:
		return 90, true
	case FuncP95:
		return 95, true
	case FuncP99:
		return 99, true
	}
	return 0, false
}

// Spec is one requested metric.
type Spec struct {
	Function Function `json:"function"`
	Field    string   `json:"field"`
	Alias    string   `json:"alias,omitempty"`
}

// EffectiveAlias returns Alias or the default "<function>_<field>".
// Count-star becomes "count_all" so the alias stays a usable column name.
func (s Spec) EffectiveAlias() string {
	if s.Alias != "" {
		return s.Alias
	}
	field := s.Field
	if field == AllFields || field == "" {
		field = "all"
	}
	return fmt.Sprintf("%s_%s", s.Function, field)
}

// Validate checks the function/field combination.
func (s Spec) Validate() error {
	if !ValidFunction(s.Function) {
		return fmt.Errorf("unsupported aggregation function %q", s.Function)
	}
	if s.Function == FuncCount {
		return nil
	}
	if s.Field == "" {
		return fmt.Errorf("%s requires a field", s.Function)
	}
	if s.Field == AllFields {
		return fmt.Errorf("%s does not accept %q (only count does)", s.Function, AllFields)
	}
	return nil
}
