package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aevon-lab/aevon-analytics/internal/schema"
)

// FileSystemRepository implements schema.Repository over a flat directory of
// entity definitions: root/<Entity>.yaml, root/<Entity>.yml or
// root/<Entity>.proto. YAML takes precedence when several exist.
type FileSystemRepository struct {
	rootDir string
}

// NewFileSystemRepository creates a new file system backed repository.
func NewFileSystemRepository(rootDir string) *FileSystemRepository {
	return &FileSystemRepository{
		rootDir: rootDir,
	}
}

var extensions = []struct {
	ext    string
	format schema.Format
}{
	{".yaml", schema.FormatYaml},
	{".yml", schema.FormatYaml},
	{".proto", schema.FormatProtobuf},
}

// Get reads the definition file for name.
func (r *FileSystemRepository) Get(ctx context.Context, name string) (*schema.Definition, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, schema.ErrNotFound
	}

	var found []string
	var def *schema.Definition
	for _, e := range extensions {
		path := filepath.Join(r.rootDir, name+e.ext)
		if !fileExists(path) {
			continue
		}
		found = append(found, path)
		if def != nil {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read definition %s: %w", path, err)
		}
		def = schema.NewDefinition(name, e.format, content)
		def.Location = path
	}

	if len(found) > 1 {
		slog.Warn("[Schema] Multiple definitions for entity, using first by precedence",
			"entity", name, "files", found)
	}
	if def == nil {
		return nil, schema.ErrNotFound
	}
	return def, nil
}

// List scans the root directory for definitions, one per entity name.
func (r *FileSystemRepository) List(ctx context.Context) ([]*schema.Definition, error) {
	entries, err := os.ReadDir(r.rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*schema.Definition{}, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !supported(ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	defs := make([]*schema.Definition, 0, len(names))
	for _, name := range names {
		def, err := r.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func supported(ext string) bool {
	for _, e := range extensions {
		if e.ext == ext {
			return true
		}
	}
	return false
}

// fileExists checks if a regular file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
