package aggregation

import (
	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
	"github.com/aevon-lab/aevon-analytics/internal/remote"
)

type groupState struct {
	key    coreagg.GroupKey
	states []*coreagg.State
}

// accumulator folds records into per-group states. Groups keep first-seen
// order so finalized output is deterministic for a given page sequence.
type accumulator struct {
	specs   []coreagg.Spec
	groupBy []string
	groups  map[string]*groupState
	order   []string
	records int
}

func newAccumulator(specs []coreagg.Spec, groupBy []string) *accumulator {
	return &accumulator{
		specs:   specs,
		groupBy: groupBy,
		groups:  make(map[string]*groupState),
	}
}

func (a *accumulator) fold(records []remote.Record) {
	for _, record := range records {
		key := coreagg.NewGroupKey(record, a.groupBy)
		g, ok := a.groups[key.Encoded]
		if !ok {
			g = &groupState{key: key, states: make([]*coreagg.State, len(a.specs))}
			for i, spec := range a.specs {
				g.states[i] = coreagg.NewState(spec)
			}
			a.groups[key.Encoded] = g
			a.order = append(a.order, key.Encoded)
		}
		for _, s := range g.states {
			s.Update(record)
		}
		a.records++
	}
}

// finalize renders every group. When nothing was folded and no group-by was
// requested the implicit group is still emitted so count reads 0.
func (a *accumulator) finalize(scale coreagg.Scale) []Result {
	if len(a.order) == 0 && len(a.groupBy) == 0 {
		g := &groupState{states: make([]*coreagg.State, len(a.specs))}
		for i, spec := range a.specs {
			g.states[i] = coreagg.NewState(spec)
		}
		return []Result{a.render(g, scale)}
	}
	results := make([]Result, 0, len(a.order))
	for _, enc := range a.order {
		results = append(results, a.render(a.groups[enc], scale))
	}
	return results
}

func (a *accumulator) render(g *groupState, scale coreagg.Scale) Result {
	values := make(map[string]*float64, len(a.specs))
	for i, spec := range a.specs {
		values[spec.EffectiveAlias()] = g.states[i].FinalizeScaled(scale)
	}
	return Result{GroupKey: g.key.Map(), Values: values}
}
