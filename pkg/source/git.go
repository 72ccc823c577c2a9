package source

import (
	"errors"
	"fmt"
	"path"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Git serves units from a single commit of a local repository. Files are read
// straight from the commit tree, so the working copy is never touched.
type Git struct {
	Repo      string
	Revision  string
	Prefix    string
	Extension string

	tree *object.Tree
	hash plumbing.Hash
}

// OpenGit opens the repository at repoPath and pins revision (a branch, tag,
// or hash; HEAD when empty).
func OpenGit(repoPath, revision, prefix, extension string) (*Git, error) {
	repoPath = strings.TrimSpace(repoPath)
	if repoPath == "" {
		return nil, fmt.Errorf("source: git repository path required")
	}
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("source: open git repository %s: %w", repoPath, err)
	}
	revision = strings.TrimSpace(revision)
	if revision == "" {
		revision = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("source: resolve revision %s: %w", revision, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("source: load commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("source: load tree for %s: %w", hash, err)
	}
	if extension == "" {
		extension = DefaultExtension
	}
	return &Git{
		Repo:      repoPath,
		Revision:  revision,
		Prefix:    strings.Trim(strings.TrimSpace(prefix), "/"),
		Extension: extension,
		tree:      tree,
		hash:      *hash,
	}, nil
}

// Commit reports the resolved commit hash.
func (g *Git) Commit() string {
	if g == nil {
		return ""
	}
	return g.hash.String()
}

func (g *Git) Fetch(name string) (string, error) {
	if g == nil || g.tree == nil {
		return "", fmt.Errorf("source: git fetcher not initialised")
	}
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	candidates := []string{clean}
	if path.Ext(clean) == "" {
		candidates = []string{clean + g.Extension, clean}
	}
	for _, candidate := range candidates {
		rel := path.Clean(strings.TrimPrefix(candidate, "/"))
		if rel == ".." || strings.HasPrefix(rel, "../") {
			return "", fmt.Errorf("source: unit %q escapes repository", name)
		}
		if g.Prefix != "" {
			rel = path.Join(g.Prefix, rel)
		}
		file, err := g.tree.File(rel)
		if err != nil {
			if errors.Is(err, object.ErrFileNotFound) {
				continue
			}
			return "", fmt.Errorf("source: git lookup %s@%s: %w", rel, g.Revision, err)
		}
		contents, err := file.Contents()
		if err != nil {
			return "", fmt.Errorf("source: git read %s@%s: %w", rel, g.Revision, err)
		}
		return contents, nil
	}
	return "", notFound(name)
}
