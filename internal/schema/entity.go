package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// Format represents the format of an entity metadata definition.
type Format string

const (
	FormatProtobuf Format = "protobuf"
	FormatYaml     Format = "yaml"
)

// Definition is one raw metadata document as stored by a repository.
type Definition struct {
	// Name is the logical entity name the document describes.
	Name string `json:"name"`

	// Format selects the compiler.
	Format Format `json:"format"`

	// Source is the raw document content.
	Source []byte `json:"-"`

	// Fingerprint is the SHA-256 of Source.
	Fingerprint string `json:"fingerprint"`

	// Location is where the document was read from, for diagnostics.
	Location string `json:"location,omitempty"`
}

// NewDefinition builds a definition and computes its fingerprint.
func NewDefinition(name string, format Format, source []byte) *Definition {
	return &Definition{
		Name:        name,
		Format:      format,
		Source:      source,
		Fingerprint: ComputeFingerprint(source),
	}
}

// ComputeFingerprint calculates SHA-256 hash of the definition.
func ComputeFingerprint(source []byte) string {
	hash := sha256.Sum256(source)
	return hex.EncodeToString(hash[:])
}

// Field is one scalar property of an entity.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Key      bool   `json:"key,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// NavigationProperty is a relationship the remote source can expand inline.
type NavigationProperty struct {
	Name         string `json:"name"`
	TargetEntity string `json:"target_entity"`
	IsCollection bool   `json:"is_collection"`
}

// EntityType is the compiled metadata for one remote entity.
type EntityType struct {
	Name                 string               `json:"name"`
	EntitySet            string               `json:"entity_set"`
	Description          string               `json:"description,omitempty"`
	Format               Format               `json:"format"`
	Fields               []Field              `json:"fields"`
	NavigationProperties []NavigationProperty `json:"navigation_properties,omitempty"`
	Fingerprint          string               `json:"fingerprint"`
}

// FieldNames returns the scalar field names in declaration order.
func (e *EntityType) FieldNames() []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Name
	}
	return out
}

// Matches reports whether name refers to this entity by type or entity set.
func (e *EntityType) Matches(name string) bool {
	return strings.EqualFold(e.Name, name) || strings.EqualFold(e.EntitySet, name)
}

func (e *EntityType) clone() *EntityType {
	c := *e
	c.Fields = append([]Field(nil), e.Fields...)
	c.NavigationProperties = append([]NavigationProperty(nil), e.NavigationProperties...)
	return &c
}

// DefaultEntitySet derives the conventional collection path for an entity
// type: lower camel case, pluralized ("SalesInvoice" -> "salesInvoices").
func DefaultEntitySet(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(name)
	runes[0] = unicode.ToLower(runes[0])
	s := string(runes)
	switch {
	case strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(s, "s"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "ch"), strings.HasSuffix(s, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}
