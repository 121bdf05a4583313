package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/samzong/gpush/internal/github"
	"github.com/samzong/gpush/internal/publish"
	"github.com/samzong/gpush/internal/staging"
	"github.com/samzong/gpush/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedRemote parks UpdateRef until the test lets it continue, leaving the
// publish in flight.
type gatedRemote struct {
	*fakeRemote
	entered chan struct{}
	proceed chan struct{}
}

func newGatedRemote() *gatedRemote {
	return &gatedRemote{fakeRemote: &fakeRemote{}, entered: make(chan struct{}, 1), proceed: make(chan struct{})}
}

func (r *gatedRemote) UpdateRef(ctx context.Context, repo github.Repo, branch, sha string) error {
	r.entered <- struct{}{}
	<-r.proceed
	return r.fakeRemote.UpdateRef(ctx, repo, branch, sha)
}

// openState opens its own connection to the state file at path, the way a
// separate gpush process would.
func openState(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.New(path)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

func newStoreFlow(t *testing.T, remote RemoteClient, st *store.Store, opts Options) *Flow {
	t.Helper()
	opts.Repo = testRepo
	opts.Branch = "main"
	opts.AutoYes = true
	f := NewFlow(remote, nil, st, opts)
	f.SetPrompter(&stubPrompter{action: ActionPublish})
	f.readFile = func(p string) ([]byte, error) { return []byte("content of " + p), nil }
	require.NoError(t, f.Load())
	return f
}

func TestFlow_SecondPushWhilePublishInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	remote := newGatedRemote()
	a := newStoreFlow(t, remote, openState(t, path), Options{})
	b := newStoreFlow(t, remote, openState(t, path), Options{})

	stageReady(t, a, "a.txt", "a.txt", "fix", "patch a")
	require.NoError(t, b.Load())

	done := make(chan error, 1)
	go func() {
		_, err := a.Push(context.Background())
		done <- err
	}()
	<-remote.entered

	// the other process sees a live publish, not an interrupted one
	require.NoError(t, b.Load())
	got, err := b.Staged().Get(1)
	require.NoError(t, err)
	assert.Equal(t, staging.StatusCommitting, got.Status)
	assert.Empty(t, got.LastError)
	busy, err := b.Busy()
	require.NoError(t, err)
	assert.Equal(t, "push o/r@main", busy)

	_, err = b.Push(context.Background())
	assert.ErrorIs(t, err, publish.ErrBranchBusy)

	close(remote.proceed)
	require.NoError(t, <-done)
	assert.Equal(t, 1, remote.refUpdates())
}

func TestFlow_StalePushAfterAnotherProcessPublished(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	remote := &fakeRemote{}
	a := newStoreFlow(t, remote, openState(t, path), Options{})
	b := newStoreFlow(t, remote, openState(t, path), Options{})

	stageReady(t, a, "a.txt", "a.txt", "fix", "patch a")
	require.NoError(t, b.Load())
	require.Equal(t, 1, b.Staged().Len())

	_, err := a.Push(context.Background())
	require.NoError(t, err)

	// b's in-memory copy is stale; the push re-reads under the lock
	_, err = b.Push(context.Background())
	assert.ErrorIs(t, err, staging.ErrNothingToPublish)

	assert.Equal(t, 1, remote.refUpdates())
}

func TestFlow_EditWaitsForPublishInFlight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	remote := newGatedRemote()
	a := newStoreFlow(t, remote, openState(t, path), Options{})
	b := newStoreFlow(t, nil, openState(t, path), Options{LockWait: 10 * time.Second})

	stageReady(t, a, "a.txt", "a.txt", "fix", "patch a")

	pushed := make(chan error, 1)
	go func() {
		_, err := a.Push(context.Background())
		pushed <- err
	}()
	<-remote.entered

	added := make(chan error, 1)
	go func() {
		added <- b.Update(context.Background(), func() error {
			_, err := b.Add([]string{"b.txt"})
			return err
		})
	}()

	select {
	case err := <-added:
		t.Fatalf("edit finished while the publish held the lock: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	close(remote.proceed)
	require.NoError(t, <-pushed)
	require.NoError(t, <-added)

	files, err := openState(t, path).LoadStaged()
	require.NoError(t, err)
	require.Len(t, files, 1, "a.txt was published and pruned, b.txt survives")
	assert.Equal(t, "b.txt", files[0].Name)
	assert.Equal(t, staging.StatusIdle, files[0].Status)
}

func TestFlow_EditsFromTwoProcessesBothLand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	a := newStoreFlow(t, nil, openState(t, path), Options{})
	b := newStoreFlow(t, nil, openState(t, path), Options{})

	require.NoError(t, a.Update(context.Background(), func() error {
		_, err := a.Add([]string{"a.txt"})
		return err
	}))
	require.NoError(t, b.Update(context.Background(), func() error {
		_, err := b.Add([]string{"b.txt"})
		return err
	}))

	files, err := openState(t, path).LoadStaged()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []string{"a.txt", "b.txt"}, []string{files[0].Name, files[1].Name})
	assert.NotEqual(t, files[0].ID, files[1].ID)
}
