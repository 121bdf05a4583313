package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samzong/gpush/internal/config"
	"github.com/samzong/gpush/internal/credential"
	"github.com/samzong/gpush/internal/git"
	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/llm"
	"github.com/samzong/gpush/internal/store"
	"github.com/samzong/gpush/internal/workflow"
)

var errRepoNotConfigured = errors.New("repository not configured, run: gpush config set repo <owner/name> (or run inside a clone with an origin remote)")

// Constructors are variables so tests can swap in fakes.
var (
	newRemoteClient = func(opts github.Options) (workflow.RemoteClient, error) {
		client, err := github.NewClient(opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	newSuggester = func(opts llm.Options) workflow.Suggester {
		return llm.NewClient(opts)
	}
	detectRepo = func(ctx context.Context) (github.Repo, error) {
		return git.NewClient(git.Options{Verbose: verbose, Logger: errWriter()}).DetectRepo(ctx)
	}
	detectBranch = func(ctx context.Context) (string, error) {
		return git.NewClient(git.Options{Verbose: verbose, Logger: errWriter()}).CurrentBranch(ctx)
	}
)

// app is the per-invocation environment: configuration, local state and
// credentials.
type app struct {
	cfg   *config.Config
	state *store.Store
	creds *credential.Store
}

func openApp() (*app, error) {
	if configErr != nil {
		return nil, fmt.Errorf("configuration error: %w", configErr)
	}
	cfg := config.GetConfig()

	statePath, err := config.StatePath(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.New(statePath)
	if err != nil {
		return nil, err
	}
	if err := st.Initialize(); err != nil {
		st.Close()
		return nil, err
	}

	creds := credential.New(st)
	if err := creds.Load(); err != nil {
		st.Close()
		return nil, err
	}
	return &app{cfg: cfg, state: st, creds: creds}, nil
}

func (a *app) Close() error {
	return a.state.Close()
}

// repo returns the configured repository, falling back to the origin
// remote of the working directory.
func (a *app) repo(ctx context.Context) (github.Repo, error) {
	if a.cfg.Repo != "" {
		return github.ParseRepo(a.cfg.Repo)
	}
	repo, err := detectRepo(ctx)
	if err != nil {
		if verbose {
			fmt.Fprintf(errWriter(), "origin detection failed: %v\n", err)
		}
		return github.Repo{}, errRepoNotConfigured
	}
	return repo, nil
}

func (a *app) remote() (workflow.RemoteClient, error) {
	return newRemoteClient(github.Options{
		Token:     a.creds.Token(),
		BaseURL:   a.cfg.APIURL,
		RateLimit: float64(a.cfg.RateLimit),
		Verbose:   verbose,
		Logger:    errWriter(),
	})
}

func (a *app) llmOptions() llm.Options {
	return llm.Options{
		APIKey:         a.creds.AssistantKey(),
		APIBase:        a.cfg.APIBase,
		Model:          a.cfg.Model,
		Timeout:        time.Duration(a.cfg.Timeout) * time.Second,
		PromptTemplate: a.cfg.PromptTemplate,
		Verbose:        verbose,
		Logger:         errWriter(),
	}
}

type flowNeeds struct {
	remote    bool
	assistant bool
}

// flow builds a workflow over the persisted staging store and loads it.
func (a *app) flow(ctx context.Context, needs flowNeeds, opts workflow.Options) (*workflow.Flow, error) {
	repo, err := a.repo(ctx)
	if err != nil && needs.remote {
		return nil, err
	}
	opts.Repo = repo
	opts.Branch = a.cfg.Branch
	opts.Concurrency = a.cfg.Concurrency
	opts.Verbose = verbose
	opts.ErrWriter = errWriter()
	opts.OutWriter = outWriter()

	var remote workflow.RemoteClient
	if needs.remote {
		if remote, err = a.remote(); err != nil {
			return nil, err
		}
	}
	var suggester workflow.Suggester
	if needs.assistant {
		suggester = newSuggester(a.llmOptions())
	}

	f := workflow.NewFlow(remote, suggester, a.state, opts)
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// withApp opens the environment, runs fn and closes it.
func withApp(fn func(a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
