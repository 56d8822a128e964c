package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheCapacity is the default number of entities to cache.
const DefaultCacheCapacity = 1000

// Registry resolves entity metadata with an LRU cache in front of a
// repository. Concurrent misses for one entity share a single load.
type Registry struct {
	repo    Repository
	formats *FormatRegistry
	cache   *LRUCache
	loads   singleflight.Group
}

// NewRegistry creates a registry with the default cache capacity.
func NewRegistry(repo Repository, formats *FormatRegistry) *Registry {
	return NewRegistryWithCache(repo, formats, DefaultCacheCapacity)
}

// NewRegistryWithCache creates a registry with a custom cache capacity.
func NewRegistryWithCache(repo Repository, formats *FormatRegistry, cacheCapacity int) *Registry {
	return &Registry{
		repo:    repo,
		formats: formats,
		cache:   NewLRUCache(cacheCapacity),
	}
}

// Entity returns metadata for name, matched by entity type or entity set.
func (r *Registry) Entity(ctx context.Context, name string) (*EntityType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty entity name", ErrNotFound)
	}
	if e := r.cache.Get(name); e != nil {
		return e, nil
	}

	v, err, shared := r.loads.Do(cacheKey(name), func() (interface{}, error) {
		return r.load(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("[Schema] Shared concurrent metadata load", "entity", name)
	}
	return v.(*EntityType).clone(), nil
}

func (r *Registry) load(ctx context.Context, name string) (*EntityType, error) {
	def, err := r.repo.Get(ctx, name)
	if err == nil {
		entity, err := r.formats.Compile(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", def.Name, err)
		}
		r.cache.Put(entity)
		return entity, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// The caller may have used the entity-set name.
	entities, err := r.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if e.Matches(name) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ListEntities compiles every stored definition, sorted by name. Definitions
// that fail to compile are reported together after the valid ones load.
func (r *Registry) ListEntities(ctx context.Context) ([]*EntityType, error) {
	defs, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var (
		out    []*EntityType
		failed []*DefinitionError
	)
	for _, def := range defs {
		if e := r.cache.Get(def.Name); e != nil && e.Fingerprint == def.Fingerprint {
			out = append(out, e)
			continue
		}
		entity, err := r.formats.Compile(ctx, def)
		if err != nil {
			slog.Warn("[Schema] Skipping invalid definition", "entity", def.Name, "location", def.Location, "error", err)
			var de *DefinitionError
			if !errors.As(err, &de) {
				de = NewDefinitionError(def.Name, def.Format, "", err.Error())
			}
			failed = append(failed, de)
			continue
		}
		r.cache.Put(entity)
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	if len(failed) > 0 && len(out) == 0 {
		return nil, &MultiDefinitionError{Errors: failed}
	}
	return out, nil
}

// EntityNames returns every known entity name.
func (r *Registry) EntityNames(ctx context.Context) ([]string, error) {
	entities, err := r.ListEntities(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.Name
	}
	return names, nil
}

// GetFields returns the scalar field names of entity.
func (r *Registry) GetFields(ctx context.Context, entity string) ([]string, error) {
	e, err := r.Entity(ctx, entity)
	if err != nil {
		return nil, err
	}
	return e.FieldNames(), nil
}

// NavigationProperties returns every navigation property of entity.
func (r *Registry) NavigationProperties(ctx context.Context, entity string) ([]NavigationProperty, error) {
	e, err := r.Entity(ctx, entity)
	if err != nil {
		return nil, err
	}
	return e.NavigationProperties, nil
}

// GetNavigationProperty finds the navigation property of source that targets
// target, matched by target entity type or entity set. It returns nil, nil
// when source has no such relationship.
func (r *Registry) GetNavigationProperty(ctx context.Context, source, target string) (*NavigationProperty, error) {
	src, err := r.Entity(ctx, source)
	if err != nil {
		return nil, err
	}

	targetNames := []string{target}
	if t, err := r.Entity(ctx, target); err == nil {
		targetNames = append(targetNames, t.Name, t.EntitySet)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	for _, nav := range src.NavigationProperties {
		for _, name := range targetNames {
			if strings.EqualFold(nav.TargetEntity, name) {
				n := nav
				return &n, nil
			}
		}
	}
	return nil, nil
}

// EntitySet returns the collection path the remote source serves entity at.
func (r *Registry) EntitySet(ctx context.Context, entity string) (string, error) {
	e, err := r.Entity(ctx, entity)
	if err != nil {
		return "", err
	}
	return e.EntitySet, nil
}

// Invalidate drops one entity from the cache.
func (r *Registry) Invalidate(name string) {
	r.cache.Invalidate(name)
	slog.Info("[Schema] Cache entry invalidated", "entity", name)
}

// InvalidateAll drops every cached entity.
func (r *Registry) InvalidateAll() {
	r.cache.Clear()
	slog.Info("[Schema] Cache cleared")
}

// CachedEntities returns how many entities are cached.
func (r *Registry) CachedEntities() int {
	return r.cache.Len()
}
