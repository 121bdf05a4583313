// Package workflow provides the staging, suggestion and publish workflow
// orchestration logic.
package workflow

import (
	"context"
	"time"

	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/llm"
	"github.com/samzong/gpush/internal/publish"
	"github.com/samzong/gpush/internal/repoindex"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/store"
)

// RemoteClient abstracts the GitHub operations for testability.
type RemoteClient interface {
	publish.Remote
	repoindex.TreeLister
	GetFileContent(ctx context.Context, repo github.Repo, path, ref string) (string, error)
	ListCommits(ctx context.Context, repo github.Repo, branch string, limit int) ([]github.CommitSummary, error)
}

// Suggester abstracts the assistant for testability.
type Suggester interface {
	Suggest(ctx context.Context, path, oldContent, newContent string) (llm.Suggestion, error)
}

// StateStore persists staging and the repository index between runs. The
// lease methods are shared by every process using the same state file.
type StateStore interface {
	LoadStaged() ([]staging.File, error)
	SaveStaged(upsert []staging.File, remove []int64) error
	AcquireLock(name, owner, note string, ttl time.Duration) (bool, store.LockHolder, error)
	RefreshLock(name, owner string, ttl time.Duration) error
	ReleaseLock(name, owner string) error
	GetLock(name string) (store.LockHolder, error)
	SaveIndex(repo, branch string, idx *repoindex.Index) error
	LoadIndex(repo, branch string) (*repoindex.Index, time.Time, error)
}
