package aggregation

import (
	"errors"
	"fmt"
	"strings"

	coreagg "github.com/aevon-lab/aevon-analytics/internal/core/aggregation"
)

// ErrInvalidRequest marks aggregation requests rejected before any fetch.
var ErrInvalidRequest = errors.New("invalid aggregation request")

func invalidRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate checks the request shape. It never touches the remote source.
func (r *Request) Validate() error {
	r.Entity = strings.TrimSpace(r.Entity)
	if r.Entity == "" {
		return invalidRequestf("entity is required")
	}
	if len(r.Specs) == 0 {
		return invalidRequestf("at least one aggregation is required")
	}
	if r.Top < 0 {
		return invalidRequestf("top must be >= 0, got %d", r.Top)
	}

	aliases := make(map[string]struct{}, len(r.Specs))
	for i := range r.Specs {
		spec := &r.Specs[i]
		fn, err := coreagg.ParseFunction(string(spec.Function))
		if err != nil {
			return invalidRequestf("aggregations[%d]: %v", i, err)
		}
		spec.Function = fn
		spec.Field = strings.TrimSpace(spec.Field)
		if spec.Function == coreagg.FuncCount && spec.Field == "" {
			spec.Field = coreagg.AllFields
		}
		if err := spec.Validate(); err != nil {
			return invalidRequestf("aggregations[%d]: %v", i, err)
		}
		alias := spec.EffectiveAlias()
		if _, dup := aliases[alias]; dup {
			return invalidRequestf("duplicate aggregation alias %q", alias)
		}
		aliases[alias] = struct{}{}
	}

	seen := make(map[string]struct{}, len(r.GroupBy))
	for _, f := range r.GroupBy {
		if strings.TrimSpace(f) == "" {
			return invalidRequestf("group_by contains an empty field")
		}
		if _, dup := seen[f]; dup {
			return invalidRequestf("group_by field %q listed twice", f)
		}
		seen[f] = struct{}{}
	}

	if r.OrderBy != "" {
		_, isAlias := aliases[r.OrderBy]
		_, isGroup := seen[r.OrderBy]
		if !isAlias && !isGroup {
			return invalidRequestf("order_by %q must name an aggregation alias or group_by field", r.OrderBy)
		}
	}
	return nil
}

// selectFields is the projection pushed down to the source: group-by fields
// followed by every referenced metric field. Nil means no projection.
func (r Request) selectFields() []string {
	var fields []string
	seen := make(map[string]struct{})
	add := func(f string) {
		if f == "" || f == coreagg.AllFields {
			return
		}
		if _, ok := seen[f]; ok {
			return
		}
		seen[f] = struct{}{}
		fields = append(fields, f)
	}
	for _, f := range r.GroupBy {
		add(f)
	}
	for _, s := range r.Specs {
		add(s.Field)
	}
	return fields
}
