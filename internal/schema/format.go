package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FormatCompiler compiles a raw definition into entity metadata.
// Each metadata format (protobuf, YAML) implements this interface.
type FormatCompiler interface {
	Compile(ctx context.Context, def *Definition) (*EntityType, error)
}

// FormatRegistry manages compiler implementations for each definition format.
type FormatRegistry struct {
	mu        sync.RWMutex
	compilers map[Format]FormatCompiler
}

// NewFormatRegistry creates a new format registry.
func NewFormatRegistry() *FormatRegistry {
	return &FormatRegistry{
		compilers: make(map[Format]FormatCompiler),
	}
}

// RegisterFormat registers the compiler for a definition format.
func (r *FormatRegistry) RegisterFormat(format Format, compiler FormatCompiler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.compilers[format] = compiler
}

// GetCompiler retrieves the compiler for a given format.
func (r *FormatRegistry) GetCompiler(format Format) (FormatCompiler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	compiler, exists := r.compilers[format]
	if !exists {
		return nil, fmt.Errorf("unsupported definition format: %s", format)
	}
	return compiler, nil
}

// IsFormatSupported checks if a format has been registered.
func (r *FormatRegistry) IsFormatSupported(format Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.compilers[format]
	return exists
}

// SupportedFormats returns the registered formats, sorted.
func (r *FormatRegistry) SupportedFormats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]Format, 0, len(r.compilers))
	for format := range r.compilers {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Compile dispatches def to its format's compiler.
func (r *FormatRegistry) Compile(ctx context.Context, def *Definition) (*EntityType, error) {
	compiler, err := r.GetCompiler(def.Format)
	if err != nil {
		return nil, err
	}
	entity, err := compiler.Compile(ctx, def)
	if err != nil {
		return nil, err
	}
	if entity.EntitySet == "" {
		entity.EntitySet = DefaultEntitySet(entity.Name)
	}
	entity.Format = def.Format
	entity.Fingerprint = def.Fingerprint
	return entity, nil
}
