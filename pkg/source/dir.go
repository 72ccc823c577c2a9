package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtension is appended to unit names that carry no extension.
const DefaultExtension = ".star"

// Dir resolves unit names against an ordered list of filesystem roots.
type Dir struct {
	Roots     []string
	Extension string
}

// NewDir returns a Dir over the given roots, made absolute.
func NewDir(extension string, roots ...string) (*Dir, error) {
	out := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) == "" {
			continue
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("source: resolve root %q: %w", root, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	if extension == "" {
		extension = DefaultExtension
	}
	return &Dir{Roots: out, Extension: extension}, nil
}

func (d *Dir) Fetch(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	for _, candidate := range d.candidates(clean) {
		for _, root := range d.Roots {
			path, ok := containedPath(root, candidate)
			if !ok {
				return "", fmt.Errorf("source: unit %q escapes root %s", name, root)
			}
			data, err := os.ReadFile(path)
			if err == nil {
				return string(data), nil
			}
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if isDirError(path) {
				continue
			}
			return "", fmt.Errorf("source: read %s: %w", path, err)
		}
	}
	return "", notFound(name)
}

func (d *Dir) candidates(name string) []string {
	if filepath.Ext(name) != "" || d.Extension == "" {
		return []string{name}
	}
	return []string{name + d.Extension, name}
}

func containedPath(root, name string) (string, bool) {
	if filepath.IsAbs(name) {
		name = strings.TrimPrefix(name, string(filepath.Separator))
	}
	joined := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, joined)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return joined, true
}

func isDirError(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// File serves exactly one unit, named name, from the file at path. It backs
// the CLI's --file flag.
type File struct {
	Name string
	Path string
}

func (f File) Fetch(name string) (string, error) {
	if name != f.Name {
		return "", notFound(name)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", notFound(name)
		}
		return "", fmt.Errorf("source: read %s: %w", f.Path, err)
	}
	return string(data), nil
}
