package protobuf

import (
	"context"
	"fmt"
	"strings"

	"github.com/aevon-lab/aevon-analytics/internal/schema"
	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Compiler compiles .proto entity definitions. The message named after the
// entity (or the first top-level message) describes it: scalar fields become
// fields, message-typed fields become navigation properties and repeated
// message fields become collection navigation properties.
type Compiler struct{}

// NewCompiler creates a new protobuf compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a .proto definition into entity metadata.
func (c *Compiler) Compile(ctx context.Context, def *schema.Definition) (*schema.EntityType, error) {
	if def.Format != schema.FormatProtobuf {
		return nil, fmt.Errorf("expected protobuf format, got %s", def.Format)
	}

	fileName := fmt.Sprintf("%s.proto", strings.ReplaceAll(def.Name, ".", "_"))
	resolver := &singleFileResolver{
		fileName: fileName,
		content:  string(def.Source),
	}

	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolver),
		SourceInfoMode: protocompile.SourceInfoNone,
	}

	files, err := compiler.Compile(ctx, fileName)
	if err != nil {
		return nil, schema.NewDefinitionError(def.Name, def.Format, "", fmt.Sprintf("compile proto: %v", err))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files compiled")
	}

	messages := files[0].Messages()
	if messages.Len() == 0 {
		return nil, schema.NewDefinitionError(def.Name, def.Format, "", "proto must define at least one message")
	}

	md := messages.Get(0)
	for i := 0; i < messages.Len(); i++ {
		if strings.EqualFold(string(messages.Get(i).Name()), def.Name) {
			md = messages.Get(i)
			break
		}
	}
	return describe(md), nil
}

func describe(md protoreflect.MessageDescriptor) *schema.EntityType {
	entity := &schema.EntityType{Name: string(md.Name())}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := fd.JSONName()

		if fd.IsMap() {
			continue
		}
		if fd.Kind() == protoreflect.MessageKind || fd.Kind() == protoreflect.GroupKind {
			if t, ok := wellKnownScalar(fd.Message()); ok {
				entity.Fields = append(entity.Fields, schema.Field{Name: name, Type: t})
				continue
			}
			entity.NavigationProperties = append(entity.NavigationProperties, schema.NavigationProperty{
				Name:         name,
				TargetEntity: string(fd.Message().Name()),
				IsCollection: fd.IsList(),
			})
			continue
		}

		key := strings.EqualFold(name, "id")
		entity.Fields = append(entity.Fields, schema.Field{
			Name:     name,
			Type:     scalarType(fd.Kind()),
			Key:      key,
			Required: key,
		})
	}
	return entity
}

func wellKnownScalar(md protoreflect.MessageDescriptor) (string, bool) {
	switch md.FullName() {
	case "google.protobuf.Timestamp":
		return "datetime", true
	case "google.protobuf.Duration", "google.protobuf.StringValue":
		return "string", true
	case "google.protobuf.DoubleValue":
		return "double", true
	case "google.protobuf.Int64Value":
		return "int64", true
	case "google.protobuf.BoolValue":
		return "bool", true
	}
	return "", false
}

func scalarType(k protoreflect.Kind) string {
	switch k {
	case protoreflect.BoolKind:
		return "bool"
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return "int32"
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return "int64"
	case protoreflect.FloatKind:
		return "float"
	case protoreflect.DoubleKind:
		return "double"
	default:
		return "string"
	}
}

// singleFileResolver provides proto content for compilation.
type singleFileResolver struct {
	fileName string
	content  string
}

func (r *singleFileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	if path == r.fileName {
		return protocompile.SearchResult{
			Source: strings.NewReader(r.content),
		}, nil
	}
	return protocompile.SearchResult{}, fmt.Errorf("file not found: %s", path)
}
