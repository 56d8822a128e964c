package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// ErrNotFound is returned when no metadata exists for an entity.
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity definition already exists")
)

// DefinitionError is a malformed metadata document.
type DefinitionError struct {
	Entity  string `json:"entity"`
	Format  Format `json:"format,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *DefinitionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s (entity %s)", e.Field, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s (entity %s)", e.Message, e.Entity)
}

// MultiDefinitionError aggregates definition failures from one catalog load.
type MultiDefinitionError struct {
	Errors []*DefinitionError
}

func (e *MultiDefinitionError) Error() string {
	if len(e.Errors) == 0 {
		return "definition load failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("definition load failed: %s", strings.Join(msgs, "; "))
}

// Detailer surfaces structured details for API error responses.
type Detailer interface {
	Details() map[string]interface{}
}

// Details returns the structured fields of a single definition error.
func (e *DefinitionError) Details() map[string]interface{} {
	d := map[string]interface{}{"entity": e.Entity}
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// Details lists the entities that failed to load.
func (e *MultiDefinitionError) Details() map[string]interface{} {
	var entities []string
	for _, de := range e.Errors {
		entities = append(entities, de.Entity)
	}
	return map[string]interface{}{"entities": entities}
}

// NewDefinitionError creates a definition error for entity.
func NewDefinitionError(entity string, format Format, field, message string) *DefinitionError {
	return &DefinitionError{Entity: entity, Format: format, Field: field, Message: message}
}
