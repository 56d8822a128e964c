package schema

import (
	"context"
)

// Repository defines the interface for entity metadata storage.
type Repository interface {
	// Get retrieves the definition for an entity name. Returns ErrNotFound if
	// no document describes it.
	Get(ctx context.Context, name string) (*Definition, error)

	// List returns every stored definition.
	List(ctx context.Context) ([]*Definition, error)
}
