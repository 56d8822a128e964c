package join

import (
	"sort"
	"strings"

	levenshtein "github.com/agnivade/levenshtein"
)

const maxSuggestions = 3

// suggest returns up to three candidates closest to name by edit distance,
// ignoring case. Candidates further than a third of the name's length (and
// at least two edits) away are dropped.
func suggest(name string, candidates []string) []string {
	type scored struct {
		name string
		dist int
	}
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}

	needle := strings.ToLower(name)
	var ranked []scored
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(needle, strings.ToLower(c))
		if d <= limit {
			ranked = append(ranked, scored{name: c, dist: d})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].dist != ranked[j].dist {
			return ranked[i].dist < ranked[j].dist
		}
		return ranked[i].name < ranked[j].name
	})

	var out []string
	for i := 0; i < len(ranked) && i < maxSuggestions; i++ {
		out = append(out, ranked[i].name)
	}
	return out
}
