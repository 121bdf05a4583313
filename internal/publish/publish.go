// Package publish lands a batch of files on a branch as exactly one commit
// using the git data API: resolve the tip, create blobs, build a tree on top
// of the tip's tree, create a commit and fast-forward the branch ref.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/staging"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

var (
	// ErrBranchBusy is returned when another publish to the same branch is
	// still running in this process.
	ErrBranchBusy = errors.New("another publish to this branch is in progress")
	// ErrDuplicatePath is returned when two entries target the same path.
	ErrDuplicatePath = errors.New("duplicate path in batch")
)

// Remote is the subset of the git data API a publish needs.
type Remote interface {
	GetBranchTip(ctx context.Context, repo github.Repo, branch string) (string, error)
	GetCommitTree(ctx context.Context, repo github.Repo, commitSHA string) (string, error)
	CreateBlob(ctx context.Context, repo github.Repo, content []byte) (string, error)
	CreateTree(ctx context.Context, repo github.Repo, baseTree string, entries []github.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, repo github.Repo, message, treeSHA string, parents []string) (string, error)
	UpdateRef(ctx context.Context, repo github.Repo, branch, sha string) error
}

// Entry is one file of the batch.
type Entry struct {
	Path    string
	Content []byte
}

// Result describes the published revision.
type Result struct {
	CommitSHA string
	TreeSHA   string
	ParentSHA string
	Files     int
}

// ProgressFunc is called when a step starts.
type ProgressFunc func(step Step)

// Options configures a Publisher.
type Options struct {
	// Concurrency bounds the blob fan-out.
	Concurrency int
	Progress    ProgressFunc
}

// Publisher runs publishes against one remote.
type Publisher struct {
	remote Remote
	opts   Options

	mu   sync.Mutex
	busy map[string]struct{}
}

// New returns a Publisher.
func New(remote Remote, opts Options) *Publisher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Publisher{remote: remote, opts: opts, busy: map[string]struct{}{}}
}

// CheckEntries rejects a batch that cannot be turned into a tree.
func CheckEntries(entries []Entry) error {
	if len(entries) == 0 {
		return staging.ErrNothingToPublish
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if err := staging.ValidatePath("batch entry", e.Path); err != nil {
			return err
		}
		if _, ok := seen[e.Path]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, e.Path)
		}
		seen[e.Path] = struct{}{}
	}
	return nil
}

func (p *Publisher) acquire(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.busy[key]; ok {
		return false
	}
	p.busy[key] = struct{}{}
	return true
}

func (p *Publisher) release(key string) {
	p.mu.Lock()
	delete(p.busy, key)
	p.mu.Unlock()
}

func (p *Publisher) progress(step Step) {
	if p.opts.Progress != nil {
		p.opts.Progress(step)
	}
}

// Publish commits entries to branch with message. The branch ref is the only
// remote state that becomes visible, and it is touched last; any earlier
// failure leaves the branch where it was. A ref update that is not a fast
// forward fails rather than overwriting concurrent work.
func (p *Publisher) Publish(ctx context.Context, repo github.Repo, branch string, entries []Entry, message string) (Result, error) {
	if err := CheckEntries(entries); err != nil {
		return Result{}, err
	}

	key := repo.String() + "@" + branch
	if !p.acquire(key) {
		return Result{}, fmt.Errorf("%w: %s", ErrBranchBusy, key)
	}
	defer p.release(key)

	p.progress(StepResolveTip)
	tip, err := p.remote.GetBranchTip(ctx, repo, branch)
	if err != nil {
		return Result{}, stepError(StepResolveTip, err)
	}

	p.progress(StepBaseTree)
	baseTree, err := p.remote.GetCommitTree(ctx, repo, tip)
	if err != nil {
		return Result{}, stepError(StepBaseTree, err)
	}

	p.progress(StepBlobs)
	blobs, err := p.createBlobs(ctx, repo, entries)
	if err != nil {
		return Result{}, stepError(StepBlobs, err)
	}

	treeEntries := make([]github.TreeEntry, len(entries))
	for i, e := range entries {
		treeEntries[i] = github.TreeEntry{
			Path: e.Path,
			Mode: github.FileMode,
			Type: github.TypeBlob,
			SHA:  blobs[i],
		}
	}

	p.progress(StepTree)
	tree, err := p.remote.CreateTree(ctx, repo, baseTree, treeEntries)
	if err != nil {
		return Result{}, stepError(StepTree, err)
	}

	p.progress(StepCommit)
	commit, err := p.remote.CreateCommit(ctx, repo, message, tree, []string{tip})
	if err != nil {
		return Result{}, stepError(StepCommit, err)
	}

	p.progress(StepUpdateRef)
	if err := p.remote.UpdateRef(ctx, repo, branch, commit); err != nil {
		return Result{}, stepError(StepUpdateRef, err)
	}

	return Result{CommitSHA: commit, TreeSHA: tree, ParentSHA: tip, Files: len(entries)}, nil
}

// createBlobs uploads every entry in parallel with bounded concurrency. The
// returned shas are in entry order. The first failure cancels the shared
// context; requests already dispatched are not recalled.
func (p *Publisher) createBlobs(ctx context.Context, repo github.Repo, entries []Entry) ([]string, error) {
	shas := make([]string, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, entry := range entries {
		g.Go(func() error {
			sha, err := p.remote.CreateBlob(ctx, repo, entry.Content)
			if err != nil {
				return fmt.Errorf("blob for %s: %w", entry.Path, err)
			}
			shas[i] = sha
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return shas, nil
}
