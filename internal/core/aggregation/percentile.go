package aggregation

import (
	"math"
	"sort"
)

// Percentile sorts values in place and interpolates linearly between the
// two ranks bracketing index = p/100 * (n-1).
func Percentile(values []float64, p float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sort.Float64s(values)
	if n == 1 {
		return values[0], true
	}
	idx := p / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	if lo == hi {
		return values[lo], true
	}
	frac := idx - float64(lo)
	return values[lo] + (values[hi]-values[lo])*frac, true
}
