package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/aevon-lab/aevon-analytics/internal/schema"
)

// MemoryRepository is an in-memory implementation of schema.Repository.
// Useful for testing and development.
type MemoryRepository struct {
	mu   sync.RWMutex
	defs map[string]*schema.Definition
}

// NewMemoryRepository creates a new in-memory definition repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		defs: make(map[string]*schema.Definition),
	}
}

// Create stores a definition. Returns schema.ErrAlreadyExists for a name
// that is already stored.
func (r *MemoryRepository) Create(ctx context.Context, def *schema.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return schema.ErrAlreadyExists
	}
	copy := *def
	r.defs[def.Name] = &copy
	return nil
}

// Put stores or replaces a definition.
func (r *MemoryRepository) Put(def *schema.Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copy := *def
	r.defs[def.Name] = &copy
}

func (r *MemoryRepository) Get(ctx context.Context, name string) (*schema.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.defs[name]
	if !exists {
		return nil, schema.ErrNotFound
	}
	copy := *def
	return &copy, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]*schema.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*schema.Definition, 0, len(r.defs))
	for _, def := range r.defs {
		copy := *def
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[name]; !exists {
		return schema.ErrNotFound
	}
	delete(r.defs, name)
	return nil
}
