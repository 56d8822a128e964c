package yaml

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// EntitySpec is the YAML representation of one entity's metadata.
type EntitySpec struct {
	Entity      string         `yaml:"entity"`
	EntitySet   string         `yaml:"entitySet,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Fields      FieldList      `yaml:"fields"`
	Navigation  NavigationList `yaml:"navigation,omitempty"`
}

// Field defines a single scalar property.
//
// Fields support two declaration styles:
//
//	Shorthand (scalar): number: string!
//	Long form (mapping): id:
//	                        type: guid
//	                        key: true
//
// Type names: string, bool, int32, int64, float, double, decimal, date,
// datetime, guid. Append "!" to mark a field as required.
type Field struct {
	Name     string `yaml:"-"`
	Type     string `yaml:"type"`
	Key      bool   `yaml:"key,omitempty"`
	Required bool   `yaml:"required,omitempty"`
}

var fieldTypes = map[string]bool{
	"string": true, "bool": true, "int32": true, "int64": true, "float": true,
	"double": true, "decimal": true, "date": true, "datetime": true, "guid": true,
}

// UnmarshalYAML accepts both shorthand and long-form declarations.
func (f *Field) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return f.parseTypeString(value.Value)
	}

	// Decode through an alias to avoid recursing into this method.
	type fieldAlias Field
	var alias fieldAlias
	if err := value.Decode(&alias); err != nil {
		return err
	}
	*f = Field(alias)

	if f.Type == "" {
		return fmt.Errorf("field missing 'type'")
	}
	return f.parseTypeString(f.Type)
}

func (f *Field) parseTypeString(s string) error {
	if strings.HasSuffix(s, "!") {
		f.Required = true
		s = strings.TrimSuffix(s, "!")
	}
	if !fieldTypes[s] {
		return fmt.Errorf("unsupported type %q (must be: string, bool, int32, int64, float, double, decimal, date, datetime, guid)", s)
	}
	f.Type = s
	return nil
}

// FieldList keeps fields in document order.
type FieldList []*Field

// UnmarshalYAML decodes a mapping of name -> field declaration.
func (l *FieldList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("fields must be a mapping")
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var f Field
		if err := value.Content[i+1].Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		f.Name = name
		*l = append(*l, &f)
	}
	return nil
}

// Navigation is one relationship declaration.
//
//	Shorthand: customer: Customer
//	Collection shorthand: lines: [SalesInvoiceLine]
//	Long form: lines: {target: SalesInvoiceLine, collection: true}
type Navigation struct {
	Name       string `yaml:"-"`
	Target     string `yaml:"target"`
	Collection bool   `yaml:"collection,omitempty"`
}

// UnmarshalYAML accepts scalar, single-item sequence and mapping forms.
func (n *Navigation) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		n.Target = value.Value
	case yaml.SequenceNode:
		if len(value.Content) != 1 || value.Content[0].Kind != yaml.ScalarNode {
			return fmt.Errorf("collection shorthand must name exactly one target entity")
		}
		n.Target = value.Content[0].Value
		n.Collection = true
	default:
		type navAlias Navigation
		var alias navAlias
		if err := value.Decode(&alias); err != nil {
			return err
		}
		*n = Navigation(alias)
	}
	if n.Target == "" {
		return fmt.Errorf("navigation missing 'target'")
	}
	return nil
}

// NavigationList keeps navigation properties in document order.
type NavigationList []*Navigation

// UnmarshalYAML decodes a mapping of name -> navigation declaration.
func (l *NavigationList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("navigation must be a mapping")
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var n Navigation
		if err := value.Content[i+1].Decode(&n); err != nil {
			return fmt.Errorf("navigation %q: %w", name, err)
		}
		n.Name = name
		*l = append(*l, &n)
	}
	return nil
}

// Validate checks the entity definition is structurally usable.
func (s *EntitySpec) Validate() error {
	if s.Entity == "" {
		return fmt.Errorf("entity name is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("entity must define at least one field")
	}

	seen := make(map[string]bool, len(s.Fields)+len(s.Navigation))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("field name cannot be empty")
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = true
	}
	for _, n := range s.Navigation {
		if seen[n.Name] {
			return fmt.Errorf("navigation %q collides with another property", n.Name)
		}
		seen[n.Name] = true
	}
	return nil
}

// String returns a human-readable description of the field type.
func (f *Field) String() string {
	parts := []string{f.Type}
	if f.Key {
		parts = append(parts, "key")
	}
	if f.Required {
		parts = append(parts, "required")
	}
	return strings.Join(parts, " ")
}
