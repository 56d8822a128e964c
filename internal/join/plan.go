package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aevon-lab/aevon-analytics/internal/schema"
)

// SchemaProvider is the entity metadata the planner consults. It is used
// only for planning and validation, never during execution.
type SchemaProvider interface {
	EntitySet(ctx context.Context, entity string) (string, error)
	EntityNames(ctx context.Context) ([]string, error)
	GetFields(ctx context.Context, entity string) ([]string, error)
	GetNavigationProperty(ctx context.Context, source, target string) (*schema.NavigationProperty, error)
	NavigationProperties(ctx context.Context, entity string) ([]schema.NavigationProperty, error)
}

// Plan is the planner's decision for one request.
type Plan struct {
	Strategy     Strategy
	Navigation   *schema.NavigationProperty
	PrimarySet   string
	SecondarySet string
	Reason       string
	// Validated is false when no schema was available to check the request.
	Validated bool
}

// errSchemaUnavailable marks a schema failure the planner degrades around.
var errSchemaUnavailable = errors.New("schema unavailable")

// Plan validates req (normalizing defaults in place) and chooses a strategy.
// No remote call is issued.
func (j *Joiner) Plan(ctx context.Context, req *Request) (Plan, error) {
	if err := j.normalize(req); err != nil {
		return Plan{}, err
	}

	if j.schema == nil {
		return j.planWithoutSchema(req, "no schema provider configured")
	}

	plan, err := j.planWithSchema(ctx, req)
	if errors.Is(err, errSchemaUnavailable) {
		slog.Warn("[Join] Schema lookup failed, planning without metadata", "error", err)
		return j.planWithoutSchema(req, err.Error())
	}
	return plan, err
}

func (j *Joiner) normalize(req *Request) error {
	for _, side := range []struct {
		name string
		src  *EntitySource
	}{{"primary", &req.Primary}, {"secondary", &req.Secondary}} {
		side.src.Entity = strings.TrimSpace(side.src.Entity)
		side.src.Key = strings.TrimSpace(side.src.Key)
		if side.src.Entity == "" {
			return &ValidationError{Field: side.name + ".entity", Message: "entity is required"}
		}
		if side.src.Key == "" {
			return &ValidationError{Field: side.name + ".key", Message: "join key is required"}
		}
	}

	if req.JoinType == "" {
		req.JoinType = Left
	}
	req.JoinType = Type(strings.ToLower(string(req.JoinType)))
	if req.JoinType != Inner && req.JoinType != Left {
		return &ValidationError{Field: "join_type", Message: fmt.Sprintf("unsupported join type %q", req.JoinType), Available: []string{string(Inner), string(Left)}}
	}

	if req.Strategy == "" {
		req.Strategy = StrategyAuto
	}
	req.Strategy = Strategy(strings.ToLower(string(req.Strategy)))
	switch req.Strategy {
	case StrategyAuto, StrategyExpand, StrategyClient:
	default:
		return &ValidationError{
			Field:     "strategy",
			Message:   fmt.Sprintf("unsupported strategy %q", req.Strategy),
			Available: []string{string(StrategyAuto), string(StrategyExpand), string(StrategyClient)},
		}
	}

	if req.MaxRecords < 0 {
		return &ValidationError{Field: "max_records", Message: fmt.Sprintf("must be >= 0, got %d", req.MaxRecords)}
	}
	if req.MaxRecords == 0 {
		req.MaxRecords = j.opts.DefaultMaxRecords
	}
	return nil
}

func (j *Joiner) planWithoutSchema(req *Request, why string) (Plan, error) {
	plan := Plan{PrimarySet: req.Primary.Entity, SecondarySet: req.Secondary.Entity}
	switch req.Strategy {
	case StrategyExpand:
		return Plan{}, &PlanError{
			Strategy: StrategyExpand,
			Message:  fmt.Sprintf("cannot resolve a navigation property from %s to %s: %s", req.Primary.Entity, req.Secondary.Entity, why),
		}
	case StrategyClient:
		plan.Strategy = StrategyClient
		plan.Reason = "client strategy requested"
	default:
		plan.Strategy = StrategyClient
		plan.Reason = "no entity metadata (" + why + "); using client-side hash join"
	}
	return plan, nil
}

func (j *Joiner) planWithSchema(ctx context.Context, req *Request) (Plan, error) {
	primarySet, err := j.resolve(ctx, "primary", req.Primary)
	if err != nil {
		return Plan{}, err
	}
	secondarySet, err := j.resolve(ctx, "secondary", req.Secondary)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{PrimarySet: primarySet, SecondarySet: secondarySet, Validated: true}

	if req.Strategy == StrategyClient {
		plan.Strategy = StrategyClient
		plan.Reason = "client strategy requested"
		return plan, nil
	}

	nav, err := j.schema.GetNavigationProperty(ctx, req.Primary.Entity, req.Secondary.Entity)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: navigation lookup: %v", errSchemaUnavailable, err)
	}

	if nav != nil {
		plan.Strategy = StrategyExpand
		plan.Navigation = nav
		plan.Reason = fmt.Sprintf("%s exposes navigation property %s to %s", req.Primary.Entity, nav.Name, nav.TargetEntity)
		return plan, nil
	}

	if req.Strategy == StrategyExpand {
		navs, err := j.schema.NavigationProperties(ctx, req.Primary.Entity)
		if err != nil {
			return Plan{}, fmt.Errorf("%w: navigation lookup: %v", errSchemaUnavailable, err)
		}
		names := make([]string, len(navs))
		for i, n := range navs {
			names[i] = fmt.Sprintf("%s -> %s", n.Name, n.TargetEntity)
		}
		targets := make([]string, len(navs))
		for i, n := range navs {
			targets[i] = n.TargetEntity
		}
		return Plan{}, &PlanError{
			Strategy:             StrategyExpand,
			Message:              fmt.Sprintf("%s has no navigation property targeting %s", req.Primary.Entity, req.Secondary.Entity),
			NavigationProperties: names,
			Suggestions:          suggest(req.Secondary.Entity, targets),
		}
	}

	plan.Strategy = StrategyClient
	plan.Reason = fmt.Sprintf("%s has no navigation property targeting %s; using client-side hash join", req.Primary.Entity, req.Secondary.Entity)
	return plan, nil
}

// resolve checks the entity and its key/select fields against the schema and
// returns its entity set.
func (j *Joiner) resolve(ctx context.Context, side string, src EntitySource) (string, error) {
	set, err := j.schema.EntitySet(ctx, src.Entity)
	if err != nil {
		if !errors.Is(err, schema.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", errSchemaUnavailable, err)
		}
		names, listErr := j.schema.EntityNames(ctx)
		if listErr != nil {
			return "", fmt.Errorf("%w: %v", errSchemaUnavailable, listErr)
		}
		return "", &ValidationError{
			Field:       side + ".entity",
			Message:     fmt.Sprintf("unknown entity %q", src.Entity),
			Available:   names,
			Suggestions: suggest(src.Entity, names),
		}
	}

	fields, err := j.schema.GetFields(ctx, src.Entity)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errSchemaUnavailable, err)
	}
	if !slices.Contains(fields, src.Key) {
		return "", &ValidationError{
			Field:       side + ".key",
			Message:     fmt.Sprintf("%s has no field %q", src.Entity, src.Key),
			Available:   fields,
			Suggestions: suggest(src.Key, fields),
		}
	}
	for _, f := range src.Select {
		if !slices.Contains(fields, f) {
			return "", &ValidationError{
				Field:       side + ".select",
				Message:     fmt.Sprintf("%s has no field %q", src.Entity, f),
				Available:   fields,
				Suggestions: suggest(f, fields),
			}
		}
	}
	return set, nil
}
