package join

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest marks join requests rejected by validation.
	ErrInvalidRequest = errors.New("invalid join request")
	// ErrPlanning marks requests no strategy can execute.
	ErrPlanning = errors.New("join planning failed")
)

// ValidationError names the offending input and what would have been valid.
type ValidationError struct {
	Field       string   `json:"field"`
	Message     string   `json:"message"`
	Available   []string `json:"available,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Field, e.Message)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, "; available: %s", strings.Join(e.Available, ", "))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// Details returns the structured fields for API error responses.
func (e *ValidationError) Details() map[string]interface{} {
	d := map[string]interface{}{"field": e.Field}
	if len(e.Available) > 0 {
		d["available"] = e.Available
	}
	if len(e.Suggestions) > 0 {
		d["suggestions"] = e.Suggestions
	}
	return d
}

// PlanError is returned when the requested strategy cannot run.
type PlanError struct {
	Strategy             Strategy `json:"strategy"`
	Message              string   `json:"message"`
	NavigationProperties []string `json:"navigation_properties"`
	Suggestions          []string `json:"suggestions,omitempty"`
}

func (e *PlanError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s strategy: %s", e.Strategy, e.Message)
	if len(e.NavigationProperties) == 0 {
		b.WriteString("; entity has no navigation properties")
	} else {
		fmt.Fprintf(&b, "; available navigation properties: %s", strings.Join(e.NavigationProperties, ", "))
	}
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(&b, " (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

func (e *PlanError) Unwrap() error { return ErrPlanning }

// Details returns the structured fields for API error responses.
func (e *PlanError) Details() map[string]interface{} {
	return map[string]interface{}{
		"strategy":              e.Strategy,
		"navigation_properties": e.NavigationProperties,
		"suggestions":           e.Suggestions,
	}
}
