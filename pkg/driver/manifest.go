package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thoughtpolice/a/pkg/source"
)

// ManifestFileName is the workspace manifest discovered next to entry files.
const ManifestFileName = "qlark.yml"

// ErrManifestNotFound is returned by FindManifest when no manifest exists in
// the directory or any parent.
var ErrManifestNotFound = errors.New("qlark.yml not found")

// Manifest represents the parsed contents of qlark.yml.
type Manifest struct {
	Path      string
	Name      string
	Roots     []string
	Extension string
	Git       *GitSource
	Dialect   Dialect
}

// GitSource pins a repository whose committed files serve as units.
type GitSource struct {
	Repo     string
	Revision string
	Prefix   string
}

// ValidationError aggregates manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "manifest: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("manifest validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadManifest parses qlark.yml from disk, returning a validated manifest.
// Relative roots and repository paths are resolved against the manifest's
// directory.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw manifestFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest: %s is empty", absPath)
		}
		return nil, fmt.Errorf("manifest: parse %s: %w", absPath, err)
	}

	manifest := raw.toManifest(absPath)
	if err := manifest.validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

// FindManifest walks up from start looking for qlark.yml.
func FindManifest(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("manifest: resolve %s: %w", start, err)
	}
	for {
		candidate := filepath.Join(dir, ManifestFileName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("manifest: stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrManifestNotFound
		}
		dir = parent
	}
}

// Fetchers builds the fetch chain the manifest describes: the roots first,
// then the pinned git revision.
func (m *Manifest) Fetchers() (source.Chain, error) {
	if m == nil {
		return nil, nil
	}
	var chain source.Chain
	if len(m.Roots) > 0 {
		dir, err := source.NewDir(m.Extension, m.Roots...)
		if err != nil {
			return nil, err
		}
		chain = append(chain, dir)
	}
	if m.Git != nil {
		repo, err := source.OpenGit(m.Git.Repo, m.Git.Revision, m.Git.Prefix, m.Extension)
		if err != nil {
			return nil, err
		}
		chain = append(chain, repo)
	}
	return chain, nil
}

func (m *Manifest) validate() error {
	var errs ValidationError
	if m.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	for i, root := range m.Roots {
		if root == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("roots[%d] must be a non-empty path", i))
		}
	}
	if m.Extension != "" && !strings.HasPrefix(m.Extension, ".") {
		errs.Issues = append(errs.Issues, fmt.Sprintf("extension %q must start with '.'", m.Extension))
	}
	if m.Git != nil && m.Git.Repo == "" {
		errs.Issues = append(errs.Issues, "git.repo must be provided")
	}
	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

type manifestFile struct {
	Name      string       `yaml:"name"`
	Roots     stringList   `yaml:"roots"`
	Extension string       `yaml:"extension"`
	Git       *gitYAML     `yaml:"git"`
	Dialect   *dialectYAML `yaml:"dialect"`
}

type gitYAML struct {
	Repo   string `yaml:"repo"`
	Rev    string `yaml:"rev"`
	Prefix string `yaml:"prefix"`
}

type dialectYAML struct {
	Set             *bool `yaml:"set"`
	While           *bool `yaml:"while"`
	TopLevelControl *bool `yaml:"top_level_control"`
	GlobalReassign  *bool `yaml:"global_reassign"`
	Recursion       *bool `yaml:"recursion"`
}

type stringList []string

func (mf manifestFile) toManifest(path string) *Manifest {
	base := filepath.Dir(path)
	result := &Manifest{
		Path:      path,
		Name:      strings.TrimSpace(mf.Name),
		Extension: strings.TrimSpace(mf.Extension),
		Dialect:   mf.Dialect.apply(ExtendedDialect()),
	}
	for _, root := range mf.Roots {
		result.Roots = append(result.Roots, resolveRelative(base, root))
	}
	if mf.Git != nil {
		result.Git = &GitSource{
			Repo:     resolveRelative(base, mf.Git.Repo),
			Revision: strings.TrimSpace(mf.Git.Rev),
			Prefix:   strings.TrimSpace(mf.Git.Prefix),
		}
	}
	return result
}

func resolveRelative(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

func (d *dialectYAML) apply(dialect Dialect) Dialect {
	if d == nil {
		return dialect
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&dialect.Set, d.Set)
	set(&dialect.While, d.While)
	set(&dialect.TopLevelControl, d.TopLevelControl)
	set(&dialect.GlobalReassign, d.GlobalReassign)
	set(&dialect.Recursion, d.Recursion)
	return dialect
}

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			items = append(items, strings.TrimSpace(str))
		}
		*l = stringList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	case 0:
		*l = nil
		return nil
	default:
		return fmt.Errorf("manifest: expected string or sequence for list but found %s", value.ShortTag())
	}
}
