package yaml

import (
	"context"
	"fmt"

	"github.com/aevon-lab/aevon-analytics/internal/schema"
	"gopkg.in/yaml.v3"
)

// Compiler compiles YAML entity definitions.
type Compiler struct{}

// NewCompiler creates a new YAML compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a YAML definition into entity metadata.
func (c *Compiler) Compile(ctx context.Context, def *schema.Definition) (*schema.EntityType, error) {
	if def.Format != schema.FormatYaml {
		return nil, fmt.Errorf("expected yaml format, got %s", def.Format)
	}

	var spec EntitySpec
	if err := yaml.Unmarshal(def.Source, &spec); err != nil {
		return nil, schema.NewDefinitionError(def.Name, def.Format, "", fmt.Sprintf("parse YAML: %v", err))
	}
	if err := spec.Validate(); err != nil {
		return nil, schema.NewDefinitionError(def.Name, def.Format, "", err.Error())
	}

	entity := &schema.EntityType{
		Name:        spec.Entity,
		EntitySet:   spec.EntitySet,
		Description: spec.Description,
	}
	for _, f := range spec.Fields {
		entity.Fields = append(entity.Fields, schema.Field{
			Name:     f.Name,
			Type:     f.Type,
			Key:      f.Key,
			Required: f.Required || f.Key,
		})
	}
	for _, n := range spec.Navigation {
		entity.NavigationProperties = append(entity.NavigationProperties, schema.NavigationProperty{
			Name:         n.Name,
			TargetEntity: n.Target,
			IsCollection: n.Collection,
		})
	}
	return entity, nil
}
