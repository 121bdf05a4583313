// Package git reads repository facts from the local working copy: the
// origin remote and the current branch.
package git

import (
	"context"
	"errors"
	"io"

	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/gitcmd"
	"github.com/samzong/gpush/internal/gitutil"
)

// ErrNotRepository is returned outside of a git working copy.
var ErrNotRepository = errors.New("not inside a git repository")

type Options struct {
	Verbose bool
	Dir     string
	Logger  io.Writer
}

// Client reads the local repository.
type Client struct {
	runner gitcmd.Runner
}

func NewClient(opts Options) *Client {
	return &Client{runner: gitcmd.Runner{Verbose: opts.Verbose, Dir: opts.Dir, Logger: opts.Logger}}
}

// IsGitRepository reports whether the working directory is inside a repository.
func (c *Client) IsGitRepository(ctx context.Context) bool {
	_, err := c.runner.Run(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// RemoteURL returns the fetch URL of remote.
func (c *Client) RemoteURL(ctx context.Context, remote string) (string, error) {
	if !c.IsGitRepository(ctx) {
		return "", ErrNotRepository
	}
	result, err := c.runner.Run(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", gitutil.WrapGitError("failed to read remote "+remote, result, err)
	}
	return result.StdoutString(true), nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	if !c.IsGitRepository(ctx) {
		return "", ErrNotRepository
	}
	result, err := c.runner.Run(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", gitutil.WrapGitError("failed to read current branch", result, err)
	}
	return result.StdoutString(true), nil
}

// DetectRepo parses the origin remote into owner/name.
func (c *Client) DetectRepo(ctx context.Context) (github.Repo, error) {
	url, err := c.RemoteURL(ctx, "origin")
	if err != nil {
		return github.Repo{}, err
	}
	return github.ParseRepo(url)
}
