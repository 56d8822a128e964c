package aggregation

import (
	"fmt"
	"sort"
	"strings"

	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
)

// sortResults orders results by a metric alias or a group-by field. Null
// values sort last in both directions.
func sortResults(results []Result, orderBy string, descending bool) {
	if orderBy == "" {
		return
	}
	key := func(r Result) any {
		if v, ok := r.Values[orderBy]; ok {
			if v == nil {
				return nil
			}
			return *v
		}
		return r.GroupKey[orderBy]
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := key(results[i]), key(results[j])
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		}
		c := compareValues(a, b)
		if descending {
			return c > 0
		}
		return c < 0
	})
}

func compareValues(a, b any) int {
	da, aok := coreagg.ExtractDecimal(a)
	db, bok := coreagg.ExtractDecimal(b)
	if aok && bok {
		return da.Cmp(db)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
