package aggregation

import "github.com/shopspring/decimal"

// State is the mutable accumulator for one (group key, alias) pair.
// Count is the record count for count, otherwise the number of numeric
// values observed.
type State struct {
	Function Function
	Field    string

	Count    int64
	Sum      decimal.Decimal
	Min      decimal.Decimal
	Max      decimal.Decimal
	Distinct map[string]struct{}
	Values   []float64
}

// NewState allocates fresh accumulator state for one spec.
func NewState(spec Spec) *State {
	return &State{Function: spec.Function, Field: spec.Field}
}

func (s *State) observe(v decimal.Decimal) {
	if s.Count == 0 {
		s.Min = v
		s.Max = v
	} else {
		if v.LessThan(s.Min) {
			s.Min = v
		}
		if v.GreaterThan(s.Max) {
			s.Max = v
		}
	}
	s.Sum = s.Sum.Add(v)
	s.Count++
}

// Update folds one record into the state.
func (s *State) Update(record map[string]any) {
	op := Operators[s.Function]
	if op == nil {
		return
	}
	if s.Field == AllFields || s.Field == "" {
		op.Update(s, nil, false)
		return
	}
	raw, present := record[s.Field]
	op.Update(s, raw, present)
}

// Finalize returns the metric value, or nil when the state holds no
// qualifying values.
func (s *State) Finalize() *float64 {
	op := Operators[s.Function]
	if op == nil {
		return nil
	}
	v, ok := op.Finalize(s)
	if !ok {
		return nil
	}
	return &v
}

// Scale extrapolates a sample of Sampled records to Total records. The zero
// value and Unit leave values untouched.
type Scale struct {
	Total   int64
	Sampled int64
}

// Unit is the identity scale.
var Unit = Scale{Total: 1, Sampled: 1}

// IsUnit reports whether applying s changes nothing.
func (s Scale) IsUnit() bool {
	return s.Sampled <= 0 || s.Total == s.Sampled
}

// Apply returns v*Total/Sampled, multiplying before the single division.
func (s Scale) Apply(v decimal.Decimal) decimal.Decimal {
	if s.IsUnit() {
		return v
	}
	return v.Mul(decimal.NewFromInt(s.Total)).Div(decimal.NewFromInt(s.Sampled))
}

// Factor is Total/Sampled for reporting.
func (s Scale) Factor() float64 {
	if s.IsUnit() {
		return 1
	}
	return decimal.NewFromInt(s.Total).Div(decimal.NewFromInt(s.Sampled)).InexactFloat64()
}

// FinalizeScaled is Finalize with additive functions (sum, count) scaled up
// from a sample. Other functions are already estimates of the whole.
func (s *State) FinalizeScaled(scale Scale) *float64 {
	if !s.Function.IsAdditive() || scale.IsUnit() {
		return s.Finalize()
	}
	var v decimal.Decimal
	switch s.Function {
	case FuncCount:
		v = scale.Apply(decimal.NewFromInt(s.Count))
	default:
		v = scale.Apply(s.Sum)
	}
	f := v.InexactFloat64()
	return &f
}
