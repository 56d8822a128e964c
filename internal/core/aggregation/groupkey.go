package aggregation

import (
	"encoding/json"
	"fmt"
)

// GroupKey is the ordered tuple of raw group-by values for one record.
// Encoded is a JSON array of the normalized values, so tuples that would
// stringify identically under delimiter joining ("a|b" vs "a","b") never
// collide and one tuple always encodes the same way.
type GroupKey struct {
	Fields  []string
	Values  []any
	Encoded string
}

// allGroup is the implicit single group used when no group-by is requested.
const allGroup = "[]"

// NewGroupKey projects fields out of record. Missing fields project as null.
func NewGroupKey(record map[string]any, fields []string) GroupKey {
	if len(fields) == 0 {
		return GroupKey{Encoded: allGroup}
	}
	values := make([]any, len(fields))
	for i, f := range fields {
		values[i] = record[f]
	}
	return GroupKey{Fields: fields, Values: values, Encoded: encodeTuple(values)}
}

// Map returns the key as field -> value.
func (k GroupKey) Map() map[string]any {
	if len(k.Fields) == 0 {
		return nil
	}
	out := make(map[string]any, len(k.Fields))
	for i, f := range k.Fields {
		out[f] = k.Values[i]
	}
	return out
}

// EncodeValue returns the canonical encoding of a single scalar value. Numbers
// are normalized so 5, 5.0 and json.Number("5") encode identically while the
// string "5" stays distinct.
func EncodeValue(v any) string {
	b, err := json.Marshal(normalize(v))
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

// DistinctValue is EncodeValue for distinct counting, where a numeric string
// counts as the number it spells: "5", 5 and 5.0 are one value. Decimal
// columns often arrive as strings, so they must meet their numeric twins.
func DistinctValue(v any) string {
	if s, ok := v.(string); ok {
		if d, ok := ExtractDecimal(s); ok {
			return EncodeValue(json.Number(d.String()))
		}
	}
	return EncodeValue(v)
}

func encodeTuple(values []any) string {
	norm := make([]any, len(values))
	for i, v := range values {
		norm[i] = normalize(v)
	}
	b, err := json.Marshal(norm)
	if err != nil {
		// Non-JSON values (channels, funcs) never come off the wire; fall back
		// to a per-element encoding that is still length delimited.
		out := "["
		for i, v := range values {
			if i > 0 {
				out += ","
			}
			s := EncodeValue(v)
			out += fmt.Sprintf("%d:%s", len(s), s)
		}
		return out + "]"
	}
	return string(b)
}

func normalize(v any) any {
	switch v.(type) {
	case json.Number, float64, float32, int, int32, int64:
		if d, ok := ExtractDecimal(v); ok {
			return json.Number(d.String())
		}
	}
	return v
}
