// Package github talks to the GitHub REST API: tree listings, file
// contents, git data objects (blobs, trees, commits, refs) and history.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// FileMode is the tree mode of a regular, non-executable file.
	FileMode = "100644"
	// TypeBlob is the tree entry type of a file.
	TypeBlob = "blob"
	// TypeTree is the tree entry type of a directory.
	TypeTree = "tree"
)

// Options configures a Client.
type Options struct {
	Token string
	// BaseURL overrides the API endpoint, e.g. https://ghe.example.com/api/v3/.
	BaseURL string
	// RateLimit caps requests per second; zero or less disables the limit.
	RateLimit float64
	Burst     int
	// HTTPClient is used as the transport under the oauth2 wrapper.
	HTTPClient *http.Client
	Verbose    bool
	Logger     io.Writer
}

// Client handles GitHub operations
type Client struct {
	client  *github.Client
	limiter *rate.Limiter
	verbose bool
	logger  io.Writer
}

// TreeEntry is one entry of a git tree.
type TreeEntry struct {
	Path string
	Mode string
	Type string
	SHA  string
}

// CommitSummary is a commit as shown in a history listing.
type CommitSummary struct {
	SHA     string
	Message string
	Author  string
	Date    time.Time
}

// NewClient creates a new GitHub client
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingToken
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid API URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = os.Stderr
	}

	return &Client{client: gh, limiter: limiter, verbose: opts.Verbose, logger: logger}, nil
}

func (c *Client) wait(ctx context.Context, format string, args ...any) error {
	if c.verbose {
		fmt.Fprintf(c.logger, "GitHub: "+format+"\n", args...)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// ListTree returns every entry of the branch tip's tree, recursively, in
// one request. truncated reports that GitHub cut the listing short.
func (c *Client) ListTree(ctx context.Context, repo Repo, branch string) (entries []TreeEntry, truncated bool, err error) {
	if err := c.wait(ctx, "GET tree %s@%s (recursive)", repo, branch); err != nil {
		return nil, false, err
	}
	tree, _, err := c.client.Git.GetTree(ctx, repo.Owner, repo.Name, branch, true)
	if err != nil {
		return nil, false, wrapError("failed to list tree", err)
	}

	entries = make([]TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, TreeEntry{
			Path: e.GetPath(),
			Mode: e.GetMode(),
			Type: e.GetType(),
			SHA:  e.GetSHA(),
		})
	}
	return entries, tree.GetTruncated(), nil
}

// GetFileContent returns the decoded content of path at ref. A missing file
// yields an error matching ErrNotFound.
func (c *Client) GetFileContent(ctx context.Context, repo Repo, path, ref string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if err := c.wait(ctx, "GET contents %s:%s@%s", repo, path, ref); err != nil {
		return "", err
	}
	file, _, _, err := c.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", wrapError("failed to get file content", err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is a directory", path)
	}
	// Files over 1 MB come back without inline content.
	if file.GetEncoding() == "none" {
		return c.getBlob(ctx, repo, path, file.GetSHA())
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, nil
}

func (c *Client) getBlob(ctx context.Context, repo Repo, path, sha string) (string, error) {
	if err := c.wait(ctx, "GET blob %s (%s)", sha, path); err != nil {
		return "", err
	}
	raw, _, err := c.client.Git.GetBlobRaw(ctx, repo.Owner, repo.Name, sha)
	if err != nil {
		return "", wrapError("failed to get file content", err)
	}
	return string(raw), nil
}

// GetBranchTip returns the commit sha the branch points to.
func (c *Client) GetBranchTip(ctx context.Context, repo Repo, branch string) (string, error) {
	if err := c.wait(ctx, "GET ref heads/%s", branch); err != nil {
		return "", err
	}
	ref, _, err := c.client.Git.GetRef(ctx, repo.Owner, repo.Name, "heads/"+branch)
	if err != nil {
		return "", wrapError("failed to get branch ref", err)
	}
	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("branch %s has no tip commit", branch)
	}
	return sha, nil
}

// GetCommitTree returns the tree sha of a commit.
func (c *Client) GetCommitTree(ctx context.Context, repo Repo, commitSHA string) (string, error) {
	if err := c.wait(ctx, "GET commit %s", commitSHA); err != nil {
		return "", err
	}
	commit, _, err := c.client.Git.GetCommit(ctx, repo.Owner, repo.Name, commitSHA)
	if err != nil {
		return "", wrapError("failed to get commit", err)
	}
	sha := commit.GetTree().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("commit %s has no tree", commitSHA)
	}
	return sha, nil
}

// CreateBlob uploads raw content and returns the blob sha.
func (c *Client) CreateBlob(ctx context.Context, repo Repo, content []byte) (string, error) {
	if err := c.wait(ctx, "POST blob (%d bytes)", len(content)); err != nil {
		return "", err
	}
	blob, _, err := c.client.Git.CreateBlob(ctx, repo.Owner, repo.Name, &github.Blob{
		Content:  github.String(base64.StdEncoding.EncodeToString(content)),
		Encoding: github.String("base64"),
	})
	if err != nil {
		return "", wrapError("failed to create blob", err)
	}
	return blob.GetSHA(), nil
}

// CreateTree creates a tree on top of baseTree and returns its sha.
func (c *Client) CreateTree(ctx context.Context, repo Repo, baseTree string, entries []TreeEntry) (string, error) {
	if err := c.wait(ctx, "POST tree base=%s entries=%d", baseTree, len(entries)); err != nil {
		return "", err
	}
	ghEntries := make([]*github.TreeEntry, 0, len(entries))
	for _, e := range entries {
		ghEntries = append(ghEntries, &github.TreeEntry{
			Path: github.String(e.Path),
			Mode: github.String(e.Mode),
			Type: github.String(e.Type),
			SHA:  github.String(e.SHA),
		})
	}
	tree, _, err := c.client.Git.CreateTree(ctx, repo.Owner, repo.Name, baseTree, ghEntries)
	if err != nil {
		return "", wrapError("failed to create tree", err)
	}
	return tree.GetSHA(), nil
}

// CreateCommit creates a commit object and returns its sha.
func (c *Client) CreateCommit(ctx context.Context, repo Repo, message, treeSHA string, parents []string) (string, error) {
	if err := c.wait(ctx, "POST commit tree=%s", treeSHA); err != nil {
		return "", err
	}
	parentCommits := make([]*github.Commit, 0, len(parents))
	for _, p := range parents {
		parentCommits = append(parentCommits, &github.Commit{SHA: github.String(p)})
	}
	commit, _, err := c.client.Git.CreateCommit(ctx, repo.Owner, repo.Name, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: github.String(treeSHA)},
		Parents: parentCommits,
	}, nil)
	if err != nil {
		return "", wrapError("failed to create commit", err)
	}
	return commit.GetSHA(), nil
}

// UpdateRef moves the branch to sha. The update is never forced, so
// GitHub rejects it when it is not a fast-forward.
func (c *Client) UpdateRef(ctx context.Context, repo Repo, branch, sha string) error {
	if err := c.wait(ctx, "PATCH ref heads/%s -> %s", branch, sha); err != nil {
		return err
	}
	_, _, err := c.client.Git.UpdateRef(ctx, repo.Owner, repo.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(sha)},
	}, false)
	if err != nil {
		return wrapError("failed to update branch ref", err)
	}
	return nil
}

// ListCommits returns the most recent commits on branch.
func (c *Client) ListCommits(ctx context.Context, repo Repo, branch string, limit int) ([]CommitSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	if err := c.wait(ctx, "GET commits %s@%s", repo, branch); err != nil {
		return nil, err
	}
	commits, _, err := c.client.Repositories.ListCommits(ctx, repo.Owner, repo.Name, &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, wrapError("failed to list commits", err)
	}

	out := make([]CommitSummary, 0, len(commits))
	for _, rc := range commits {
		author := rc.GetCommit().GetAuthor()
		out = append(out, CommitSummary{
			SHA:     rc.GetSHA(),
			Message: rc.GetCommit().GetMessage(),
			Author:  author.GetName(),
			Date:    author.GetDate().Time,
		})
	}
	return out, nil
}

// CurrentUser returns the login the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (string, error) {
	if err := c.wait(ctx, "GET user"); err != nil {
		return "", err
	}
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", wrapError("failed to get user", err)
	}
	return user.GetLogin(), nil
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
