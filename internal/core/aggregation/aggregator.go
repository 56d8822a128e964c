package aggregation

import (
	"github.com/shopspring/decimal"
)

// Operator defines the update and finalize semantics of one aggregation
// function over a State. To add a function: implement Operator and register
// it in Operators.
type Operator interface {
	// Update folds one record's raw field value into the state.
	// present is false when the record does not carry the field.
	Update(s *State, raw any, present bool)

	// Finalize returns the metric value; ok is false when the state holds no
	// qualifying values (finalized as null).
	Finalize(s *State) (value float64, ok bool)
}

// Operators is the registry of all supported aggregation functions.
var Operators = map[Function]Operator{
	FuncCount:         countOp{},
	FuncSum:           sumOp{},
	FuncAvg:           avgOp{},
	FuncMin:           minOp{},
	FuncMax:           maxOp{},
	FuncCountDistinct: distinctOp{},
	FuncP50:           percentileOp{p: 50},
	FuncP90:           percentileOp{p: 90},
	FuncP95:           percentileOp{p: 95},
	FuncP99:           percentileOp{p: 99},
}

// ValidFunction reports whether fn is a registered aggregation function.
func ValidFunction(fn Function) bool {
	_, ok := Operators[fn]
	return ok
}

// countOp increments per record regardless of the field value.
type countOp struct{}

func (countOp) Update(s *State, _ any, _ bool) { s.Count++ }
func (countOp) Finalize(s *State) (float64, bool) {
	return float64(s.Count), true
}

// numericUpdate is shared by sum/avg/min/max: non-numeric values are ignored.
func numericUpdate(s *State, raw any, present bool) {
	if !present {
		return
	}
	v, ok := ExtractDecimal(raw)
	if !ok {
		return
	}
	s.observe(v)
}

type sumOp struct{}

func (sumOp) Update(s *State, raw any, present bool) { numericUpdate(s, raw, present) }
func (sumOp) Finalize(s *State) (float64, bool) {
	return s.Sum.InexactFloat64(), true
}

type avgOp struct{}

func (avgOp) Update(s *State, raw any, present bool) { numericUpdate(s, raw, present) }
func (avgOp) Finalize(s *State) (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum.Div(decimal.NewFromInt(s.Count)).InexactFloat64(), true
}

type minOp struct{}

func (minOp) Update(s *State, raw any, present bool) { numericUpdate(s, raw, present) }
func (minOp) Finalize(s *State) (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Min.InexactFloat64(), true
}

type maxOp struct{}

func (maxOp) Update(s *State, raw any, present bool) { numericUpdate(s, raw, present) }
func (maxOp) Finalize(s *State) (float64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Max.InexactFloat64(), true
}

// distinctOp keeps the canonical encoding of each non-null value; numeric
// strings are keyed as numbers.
type distinctOp struct{}

func (distinctOp) Update(s *State, raw any, present bool) {
	if !present || raw == nil {
		return
	}
	if s.Distinct == nil {
		s.Distinct = make(map[string]struct{})
	}
	s.Distinct[DistinctValue(raw)] = struct{}{}
}

func (distinctOp) Finalize(s *State) (float64, bool) {
	return float64(len(s.Distinct)), true
}

// percentileOp buffers numeric values; the buffer is the only per-group
// structure that grows with the number of values aggregated.
type percentileOp struct{ p float64 }

func (percentileOp) Update(s *State, raw any, present bool) {
	if !present {
		return
	}
	v, ok := ExtractDecimal(raw)
	if !ok {
		return
	}
	s.Values = append(s.Values, v.InexactFloat64())
}

func (o percentileOp) Finalize(s *State) (float64, bool) {
	return Percentile(s.Values, o.p)
}
