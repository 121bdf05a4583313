package store

import (
	"path/filepath"
	"testing"

	"github.com/samzong/gpush/internal/repoindex"
	"github.com/samzong/gpush/internal/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new sqlite store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStore_InitializeIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	assert.NoError(t, st.Initialize())
}

func TestStore_GetAndWriteValues(t *testing.T) {
	st := newTestStore(t)

	_, ok, err := st.GetValue("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.WriteValues(map[string]string{"k": "v1"}, nil))
	require.NoError(t, st.WriteValues(map[string]string{"k": "v2"}, nil))

	v, ok, err := st.GetValue("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, st.WriteValues(nil, []string{"k"}))
	require.NoError(t, st.WriteValues(nil, []string{"k"}))
	_, ok, err = st.GetValue("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_StagedRoundTripKeepsOrder(t *testing.T) {
	st := newTestStore(t)

	files := []staging.File{
		{ID: 3, Name: "b.go", Path: "src/b.go", Content: []byte("package b"), Status: staging.StatusIdle, CommitType: "feat", CommitMessage: "add b"},
		{ID: 5, Name: "a.txt", Content: nil, Status: staging.StatusError, CommitType: "fix", LastError: "commit failed"},
	}
	require.NoError(t, st.SaveStaged(files, nil))

	got, err := st.LoadStaged()
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "src/b.go", got[0].Path)
	assert.Equal(t, []byte("package b"), got[0].Content)
	assert.Equal(t, staging.StatusIdle, got[0].Status)
	assert.Equal(t, "add b", got[0].CommitMessage)

	assert.Equal(t, staging.StatusError, got[1].Status)
	assert.Equal(t, "commit failed", got[1].LastError)
	assert.Empty(t, got[1].Content)
}

func TestStore_SaveStagedTouchesOnlyNamedRows(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SaveStaged([]staging.File{
		{ID: 1, Name: "a", Status: staging.StatusIdle, CommitType: "feat"},
		{ID: 2, Name: "b", Status: staging.StatusIdle, CommitType: "feat"},
	}, nil))

	// a second writer that only knows about file 3 must not wipe 1 and 2
	require.NoError(t, st.SaveStaged([]staging.File{{ID: 3, Name: "c", Status: staging.StatusIdle, CommitType: "fix"}}, nil))
	require.NoError(t, st.SaveStaged([]staging.File{{ID: 2, Name: "b", Status: staging.StatusCommitting, CommitType: "feat"}}, nil))

	got, err := st.LoadStaged()
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, staging.StatusCommitting, got[1].Status)
	assert.Equal(t, "c", got[2].Name)

	require.NoError(t, st.SaveStaged(nil, []int64{1, 3, 42}))
	got, err = st.LoadStaged()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestStore_WriteValuesIsAllOrNothing(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.WriteValues(map[string]string{"a": "1"}, nil))
	require.NoError(t, st.WriteValues(map[string]string{"b": "2", "c": "3"}, []string{"a"}))

	_, ok, err := st.GetValue("a")
	require.NoError(t, err)
	assert.False(t, ok)
	v, ok, err := st.GetValue("c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	// fail the write after the delete has run inside the transaction
	_, err = st.db.Exec(`CREATE TRIGGER reject_boom BEFORE INSERT ON kv WHEN NEW.key = 'boom'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)
	assert.ErrorContains(t, st.WriteValues(map[string]string{"boom": "x"}, []string{"b", "c"}), "rejected")

	for _, key := range []string{"b", "c"} {
		_, ok, err := st.GetValue(key)
		require.NoError(t, err)
		assert.True(t, ok, "%s survives the rolled back delete", key)
	}
}

func TestStore_RestoreThroughStaging(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SaveStaged([]staging.File{
		{ID: 1, Name: "a.txt", Status: staging.StatusGenerating, CommitType: "feat"},
	}, nil))
	files, err := st.LoadStaged()
	require.NoError(t, err)

	s := staging.NewStore()
	s.Restore(files, false)
	f, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, staging.StatusIdle, f.Status)
}

func TestStore_IndexRoundTrip(t *testing.T) {
	st := newTestStore(t)

	idx, scannedAt, err := st.LoadIndex("o/r", "main")
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
	assert.True(t, scannedAt.IsZero())

	in := repoindex.New()
	in.Add("src/commands/foo.js")
	in.Add("README.md")
	require.NoError(t, st.SaveIndex("o/r", "main", in))

	out, scannedAt, err := st.LoadIndex("o/r", "main")
	require.NoError(t, err)
	assert.False(t, scannedAt.IsZero())
	assert.Equal(t, in.Paths(), out.Paths())

	other, _, err := st.LoadIndex("o/r", "dev")
	require.NoError(t, err)
	assert.Equal(t, 0, other.Len())

	replacement := repoindex.New()
	replacement.Add("lib/foo.js")
	require.NoError(t, st.SaveIndex("o/r", "main", replacement))
	out, _, err = st.LoadIndex("o/r", "main")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"foo.js": "lib/foo.js"}, out.Paths())
}
