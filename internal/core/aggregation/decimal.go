package aggregation

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractDecimal converts a raw record value to an exact decimal.
// Decoded JSON numbers arrive as json.Number (decoder runs with UseNumber) or
// float64; numeric strings are accepted because OData services emit Edm.Decimal
// as strings when IEEE754Compatible is negotiated.
func ExtractDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err == nil {
			return d, true
		}
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case decimal.Decimal:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}
