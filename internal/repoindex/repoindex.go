// Package repoindex maps remote file basenames to their full paths so a
// newly staged file can inherit the path of an existing remote file.
package repoindex

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/samzong/gpush/internal/github"
)

// TreeLister lists the full recursive tree of a branch in one call.
type TreeLister interface {
	ListTree(ctx context.Context, repo github.Repo, branch string) ([]github.TreeEntry, bool, error)
}

// ScanError reports a repository that could not be indexed.
type ScanError struct {
	Repo   string
	Branch string
	Err    error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("failed to scan %s@%s: %v", e.Repo, e.Branch, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Index is a basename -> remote path lookup. When several remote files
// share a basename, the one seen last in tree order wins and the others are
// dropped; Collisions records every basename that lost entries this way.
type Index struct {
	paths      map[string]string
	collisions map[string][]string
	truncated  bool
}

// New returns an empty index.
func New() *Index {
	return &Index{paths: map[string]string{}, collisions: map[string][]string{}}
}

// Scan builds an index from the branch tip of repo. Only blob entries are
// indexed.
func Scan(ctx context.Context, lister TreeLister, repo github.Repo, branch string) (*Index, error) {
	entries, truncated, err := lister.ListTree(ctx, repo, branch)
	if err != nil {
		return nil, &ScanError{Repo: repo.String(), Branch: branch, Err: err}
	}

	idx := New()
	idx.truncated = truncated
	for _, e := range entries {
		if e.Type != github.TypeBlob {
			continue
		}
		idx.Add(e.Path)
	}
	return idx, nil
}

// Add records p under its basename, overwriting any previous mapping.
func (i *Index) Add(p string) {
	name := path.Base(p)
	if name == "." || name == "/" {
		return
	}
	if prev, ok := i.paths[name]; ok && prev != p {
		if len(i.collisions[name]) == 0 {
			i.collisions[name] = []string{prev}
		}
		i.collisions[name] = append(i.collisions[name], p)
	}
	i.paths[name] = p
}

// Lookup returns the remote path recorded for basename.
func (i *Index) Lookup(basename string) (string, bool) {
	if i == nil {
		return "", false
	}
	p, ok := i.paths[basename]
	return p, ok
}

// Len returns the number of distinct basenames.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.paths)
}

// Paths returns a copy of the mapping.
func (i *Index) Paths() map[string]string {
	out := make(map[string]string, len(i.paths))
	for k, v := range i.paths {
		out[k] = v
	}
	return out
}

// Collisions returns, for each ambiguous basename, every path seen in tree
// order. The last element is the one Lookup returns.
func (i *Index) Collisions() map[string][]string {
	out := make(map[string][]string, len(i.collisions))
	for k, v := range i.collisions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// CollisionNames returns the ambiguous basenames, sorted.
func (i *Index) CollisionNames() []string {
	names := make([]string, 0, len(i.collisions))
	for k := range i.collisions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Truncated reports that the remote listing was incomplete.
func (i *Index) Truncated() bool {
	return i.truncated
}
