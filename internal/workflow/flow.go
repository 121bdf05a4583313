package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/samzong/gpush/internal/formatter"
	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/llm"
	"github.com/samzong/gpush/internal/publish"
	"github.com/samzong/gpush/internal/repoindex"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/stringsutil"
	"github.com/samzong/gpush/internal/ui"
)

var (
	ErrCancelled   = errors.New("publish cancelled")
	errNoRemote    = errors.New("no GitHub client configured")
	errNoAssistant = errors.New("no assistant configured")
)

type Options struct {
	Repo        github.Repo
	Branch      string
	Concurrency int
	AutoYes     bool
	DryRun      bool
	Verbose     bool
	// LockWait is how long edits wait for another process to release the
	// staged files. Push never waits.
	LockWait  time.Duration
	LockTTL   time.Duration
	ErrWriter io.Writer
	OutWriter   io.Writer
}

// Flow runs gpush operations over the persisted staging store.
type Flow struct {
	remote    RemoteClient
	suggester Suggester
	state     StateStore
	opts      Options
	prompter  Prompter
	publisher *publish.Publisher
	staged    *staging.Store
	readFile  func(string) ([]byte, error)
	spinner   *ui.Spinner
	owner     string
	baseline  map[int64]staging.File
}

// NewFlow builds a flow. remote and suggester may be nil for commands that
// do not reach the network.
func NewFlow(remote RemoteClient, suggester Suggester, state StateStore, opts Options) *Flow {
	if opts.ErrWriter == nil {
		opts.ErrWriter = io.Discard
	}
	if opts.OutWriter == nil {
		opts.OutWriter = io.Discard
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.LockWait == 0 {
		opts.LockWait = defaultLockWait
	}
	f := &Flow{
		remote:    remote,
		suggester: suggester,
		state:     state,
		opts:      opts,
		prompter:  &InteractivePrompter{ErrWriter: opts.ErrWriter},
		staged:    staging.NewStore(),
		readFile:  os.ReadFile,
		owner:     newOwner(),
	}
	if remote != nil {
		f.publisher = publish.New(remote, publish.Options{
			Concurrency: opts.Concurrency,
			Progress:    f.logStep,
		})
	}
	return f
}

func (f *Flow) SetPrompter(p Prompter) {
	f.prompter = p
}

// Staged exposes the in-memory store.
func (f *Flow) Staged() *staging.Store {
	return f.staged
}

func (f *Flow) logf(format string, args ...any) {
	if f.opts.Verbose {
		fmt.Fprintf(f.opts.ErrWriter, format+"\n", args...)
	}
}

func (f *Flow) logStep(step publish.Step) {
	if f.spinner != nil {
		f.spinner.UpdateMessage(fmt.Sprintf("Publishing: %s...", step))
	}
	f.logf("publish: %s", step)
}

// Load restores the staged files saved by the previous run. Statuses left
// by an interrupted run are repaired only when no other process holds the
// staged files.
func (f *Flow) Load() error {
	files, err := f.state.LoadStaged()
	if err != nil {
		return fmt.Errorf("failed to load staged files: %w", err)
	}
	busy, err := f.Busy()
	if err != nil {
		return err
	}
	f.staged.Restore(files, busy != "")

	f.baseline = make(map[int64]staging.File, len(files))
	for _, file := range files {
		f.baseline[file.ID] = file
	}
	return nil
}

// Save writes back the files that changed since Load and deletes the ones
// that were removed.
func (f *Flow) Save() error {
	current := f.staged.Files()
	seen := make(map[int64]struct{}, len(current))
	var upsert []staging.File
	for _, file := range current {
		seen[file.ID] = struct{}{}
		if old, ok := f.baseline[file.ID]; !ok || !old.Equal(file) {
			upsert = append(upsert, file)
		}
	}
	var remove []int64
	for id := range f.baseline {
		if _, ok := seen[id]; !ok {
			remove = append(remove, id)
		}
	}
	if len(upsert) == 0 && len(remove) == 0 {
		return nil
	}
	slices.Sort(remove)

	if err := f.state.SaveStaged(upsert, remove); err != nil {
		return fmt.Errorf("failed to save staged files: %w", err)
	}
	f.baseline = make(map[int64]staging.File, len(current))
	for _, file := range current {
		f.baseline[file.ID] = file
	}
	return nil
}

// Scan indexes the remote branch and caches the result.
func (f *Flow) Scan(ctx context.Context) (*repoindex.Index, error) {
	if f.remote == nil {
		return nil, errNoRemote
	}
	spinner := ui.NewSpinner(f.opts.ErrWriter, fmt.Sprintf("Scanning %s@%s...", f.opts.Repo, f.opts.Branch))
	spinner.Start()
	idx, err := repoindex.Scan(ctx, f.remote, f.opts.Repo, f.opts.Branch)
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	if err := f.state.SaveIndex(f.opts.Repo.String(), f.opts.Branch, idx); err != nil {
		return nil, fmt.Errorf("failed to cache repository index: %w", err)
	}
	return idx, nil
}

// Add stages local files. Paths are deduplicated; the remote path is
// prefilled from the cached index when the basename is known.
func (f *Flow) Add(paths []string) ([]staging.File, error) {
	idx, scannedAt, err := f.state.LoadIndex(f.opts.Repo.String(), f.opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("failed to load repository index: %w", err)
	}
	if scannedAt.IsZero() {
		fmt.Fprintln(f.opts.ErrWriter, "Repository not scanned yet, run: gpush scan to prefill remote paths")
	}

	var added []staging.File
	for _, p := range stringsutil.UniqueStrings(paths) {
		content, err := f.readFile(p)
		if err != nil {
			return added, fmt.Errorf("failed to read %s: %w", p, err)
		}
		file := f.staged.Capture(filepath.Base(p), content, idx)
		f.logf("staged %s -> %q", p, file.Path)
		added = append(added, file)
	}
	return added, nil
}

// SuggestResult is the outcome of one suggestion.
type SuggestResult struct {
	File staging.File
	Err  error
}

// Suggest asks the assistant for a type and message for each referenced
// file. A failure leaves that file's fields untouched and does not stop the
// remaining files.
func (f *Flow) Suggest(ctx context.Context, refs []string) ([]SuggestResult, error) {
	if f.suggester == nil {
		return nil, errNoAssistant
	}
	if f.remote == nil {
		return nil, errNoRemote
	}

	var results []SuggestResult
	var errs []error
	for _, ref := range stringsutil.UniqueStrings(refs) {
		file, err := f.staged.Resolve(ref)
		if err != nil {
			return results, err
		}
		res := f.suggestOne(ctx, file)
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (f *Flow) suggestOne(ctx context.Context, file staging.File) SuggestResult {
	if _, err := f.staged.BeginGenerate(file.ID); err != nil {
		return SuggestResult{File: file, Err: fmt.Errorf("%s: %w", file.Name, err)}
	}

	spinner := ui.NewSpinner(f.opts.ErrWriter, fmt.Sprintf("Suggesting a message for %s...", file.Name))
	spinner.Start()
	s, err := f.suggest(ctx, file)
	spinner.Stop()

	apply := err == nil
	if finishErr := f.staged.FinishGenerate(file.ID, s.Type, s.Message, apply); finishErr != nil && err == nil {
		err = finishErr
	}
	updated, getErr := f.staged.Get(file.ID)
	if getErr == nil {
		file = updated
	}
	return SuggestResult{File: file, Err: err}
}

func (f *Flow) suggest(ctx context.Context, file staging.File) (llm.Suggestion, error) {
	target := file.Path
	old := ""
	if target != "" {
		content, err := f.remote.GetFileContent(ctx, f.opts.Repo, target, f.opts.Branch)
		switch {
		case errors.Is(err, github.ErrNotFound):
			f.logf("%s does not exist on %s, treating as new file", target, f.opts.Branch)
		case err != nil:
			return llm.Suggestion{}, fmt.Errorf("failed to fetch remote content of %s: %w", target, err)
		default:
			old = content
		}
	} else {
		target = file.Name
	}

	return f.suggester.Suggest(ctx, target, old, string(file.Content))
}

// PushResult describes a push.
type PushResult struct {
	Message string
	Files   []staging.File
	Skipped []error
	Commit  publish.Result
	DryRun  bool
}

// Push validates the idle files, synthesizes the message, asks for
// confirmation and publishes the batch as one commit. Outside a dry run
// the staged files are locked and reloaded first, so a second push from
// any process fails with publish.ErrBranchBusy. The store is saved before
// the remote is touched and again once the outcome is known.
func (f *Flow) Push(ctx context.Context) (res PushResult, err error) {
	res.DryRun = f.opts.DryRun
	if !f.opts.DryRun {
		release, lockErr := f.lock(ctx, fmt.Sprintf("push %s@%s", f.opts.Repo, f.opts.Branch), 0)
		if errors.Is(lockErr, ErrLocked) {
			return res, fmt.Errorf("%w: %v", publish.ErrBranchBusy, lockErr)
		}
		if lockErr != nil {
			return res, lockErr
		}
		defer func() {
			if relErr := release(); relErr != nil {
				err = errors.Join(err, relErr)
			}
		}()
		if err := f.Load(); err != nil {
			return res, err
		}
	}

	batch, invalid := f.staged.Snapshot()
	res.Files, res.Skipped = batch, invalid
	for _, err := range invalid {
		fmt.Fprintf(f.opts.ErrWriter, "Skipping %v\n", err)
	}
	if len(batch) == 0 {
		return res, staging.ErrNothingToPublish
	}

	entries := make([]publish.Entry, len(batch))
	for i, file := range batch {
		entries[i] = publish.Entry{Path: file.Path, Content: file.Content}
	}
	if err := publish.CheckEntries(entries); err != nil {
		return res, err
	}

	res.Message = formatter.Synthesize(batch)
	fmt.Fprintf(f.opts.ErrWriter, "\nCommit message for %d file(s) to %s@%s:\n", len(batch), f.opts.Repo, f.opts.Branch)
	fmt.Fprintln(f.opts.OutWriter, res.Message)

	if f.opts.DryRun {
		fmt.Fprintln(f.opts.ErrWriter, "Dry run mode, nothing was published")
		return res, nil
	}
	if f.publisher == nil {
		return res, errNoRemote
	}

	action, edited, err := f.prompter.GetConfirmation(res.Message, f.opts.AutoYes)
	if err != nil {
		return res, err
	}
	if action == ActionCancel {
		return res, ErrCancelled
	}
	if edited != "" {
		res.Message = edited
	}

	if err := f.staged.MarkCommitting(batch); err != nil {
		return res, err
	}
	if err := f.Save(); err != nil {
		return res, err
	}

	f.spinner = ui.NewSpinner(f.opts.ErrWriter, "Publishing...")
	f.spinner.Start()
	commit, pubErr := f.publisher.Publish(ctx, f.opts.Repo, f.opts.Branch, entries, res.Message)
	f.spinner.Stop()
	f.spinner = nil

	if pubErr != nil {
		if err := f.staged.MarkFailed(batch, pubErr); err != nil {
			return res, errors.Join(pubErr, err)
		}
		return res, errors.Join(pubErr, f.Save())
	}

	res.Commit = commit
	if err := f.staged.MarkCommitted(batch); err != nil {
		return res, err
	}
	f.staged.Prune()
	if err := f.Save(); err != nil {
		return res, err
	}
	return res, nil
}

// Log returns the most recent commits of the branch.
func (f *Flow) Log(ctx context.Context, limit int) ([]github.CommitSummary, error) {
	if f.remote == nil {
		return nil, errNoRemote
	}
	return f.remote.ListCommits(ctx, f.opts.Repo, f.opts.Branch, limit)
}
