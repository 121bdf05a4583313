package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = Repo{Owner: "owner", Name: "repo"}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		Token:      "test-token",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     io.Discard,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Repo
		wantError bool
	}{
		{name: "short form", input: "owner/repo", want: testRepo},
		{name: "HTTPS URL", input: "https://github.com/owner/repo.git", want: testRepo},
		{name: "Simple URL", input: "https://github.com/owner/repo/", want: testRepo},
		{name: "SSH URL", input: "git@github.com:owner/repo.git", want: testRepo},
		{name: "empty", input: "  ", wantError: true},
		{name: "Invalid Path", input: "https://github.com/invalid", wantError: true},
		{name: "too deep", input: "a/b/c", wantError: true},
		{name: "SSH without path", input: "git@github.com", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepo(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "owner/repo", got.String())
		})
	}
}

func TestNewClient_MissingToken(t *testing.T) {
	_, err := NewClient(Options{})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestClient_ListTree(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"sha": "root",
			"tree": []map[string]string{
				{"path": "src", "type": "tree", "mode": "040000", "sha": "t1"},
				{"path": "src/a.js", "type": "blob", "mode": "100644", "sha": "b1"},
			},
			"truncated": false,
		})
	})

	client := newTestClient(t, mux)
	entries, truncated, err := client.ListTree(context.Background(), testRepo, "main")
	require.NoError(t, err)
	assert.False(t, truncated)
	require.Len(t, entries, 2)
	assert.Equal(t, TreeEntry{Path: "src/a.js", Mode: "100644", Type: "blob", SHA: "b1"}, entries[1])
}

func TestClient_GetFileContent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/contents/docs/a.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		writeJSON(t, w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "base64",
			"name":     "a.md",
			"path":     "docs/a.md",
			"content":  base64.StdEncoding.EncodeToString([]byte("hello")),
		})
	})
	mux.HandleFunc("/repos/owner/repo/contents/missing.md", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})

	client := newTestClient(t, mux)
	content, err := client.GetFileContent(context.Background(), testRepo, "/docs/a.md", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello", content)

	_, err = client.GetFileContent(context.Background(), testRepo, "missing.md", "main")
	assert.True(t, IsNotFound(err))
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "Not Found", remoteErr.Message)
}

func TestClient_GetFileContentLargeFileFallsBackToBlob(t *testing.T) {
	large := strings.Repeat("x", 2<<20)
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/contents/big.bin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"type":     "file",
			"encoding": "none",
			"name":     "big.bin",
			"path":     "big.bin",
			"sha":      "bigsha",
			"size":     len(large),
			"content":  "",
		})
	})
	mux.HandleFunc("/repos/owner/repo/git/blobs/bigsha", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "raw")
		_, _ = io.WriteString(w, large)
	})

	client := newTestClient(t, mux)
	content, err := client.GetFileContent(context.Background(), testRepo, "big.bin", "main")
	require.NoError(t, err)
	assert.Equal(t, len(large), len(content))
	assert.Equal(t, large, content)
}

func TestClient_GitDataObjects(t *testing.T) {
	var (
		blobBody   map[string]string
		treeBody   map[string]any
		commitBody map[string]any
		refBody    map[string]any
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"ref":    "refs/heads/main",
			"object": map[string]string{"sha": "tip", "type": "commit"},
		})
	})
	mux.HandleFunc("/repos/owner/repo/git/commits/tip", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"sha": "tip", "tree": map[string]string{"sha": "T0"}})
	})
	mux.HandleFunc("/repos/owner/repo/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&blobBody))
		writeJSON(t, w, http.StatusCreated, map[string]string{"sha": "B1"})
	})
	mux.HandleFunc("/repos/owner/repo/git/trees", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&treeBody))
		writeJSON(t, w, http.StatusCreated, map[string]string{"sha": "T1"})
	})
	mux.HandleFunc("/repos/owner/repo/git/commits", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&commitBody))
		writeJSON(t, w, http.StatusCreated, map[string]string{"sha": "C1"})
	})
	mux.HandleFunc("/repos/owner/repo/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&refBody))
		writeJSON(t, w, http.StatusOK, map[string]any{"ref": "refs/heads/main", "object": map[string]string{"sha": "C1"}})
	})

	ctx := context.Background()
	client := newTestClient(t, mux)

	tip, err := client.GetBranchTip(ctx, testRepo, "main")
	require.NoError(t, err)
	assert.Equal(t, "tip", tip)

	tree, err := client.GetCommitTree(ctx, testRepo, tip)
	require.NoError(t, err)
	assert.Equal(t, "T0", tree)

	blob, err := client.CreateBlob(ctx, testRepo, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "B1", blob)
	assert.Equal(t, "base64", blobBody["encoding"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("x")), blobBody["content"])

	newTree, err := client.CreateTree(ctx, testRepo, tree, []TreeEntry{
		{Path: "a.txt", Mode: FileMode, Type: TypeBlob, SHA: blob},
	})
	require.NoError(t, err)
	assert.Equal(t, "T1", newTree)
	assert.Equal(t, "T0", treeBody["base_tree"])
	entries := treeBody["tree"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "a.txt", entry["path"])
	assert.Equal(t, "100644", entry["mode"])
	assert.Equal(t, "blob", entry["type"])
	assert.Equal(t, "B1", entry["sha"])

	commit, err := client.CreateCommit(ctx, testRepo, "fix(a): patch a", newTree, []string{tip})
	require.NoError(t, err)
	assert.Equal(t, "C1", commit)
	assert.Equal(t, "fix(a): patch a", commitBody["message"])
	assert.Equal(t, "T1", commitBody["tree"])
	assert.Equal(t, []any{"tip"}, commitBody["parents"])

	require.NoError(t, client.UpdateRef(ctx, testRepo, "main", commit))
	assert.Equal(t, "C1", refBody["sha"])
	assert.Equal(t, false, refBody["force"])
}

func TestClient_UpdateRefRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnprocessableEntity, map[string]string{"message": "Update is not a fast forward"})
	})

	client := newTestClient(t, mux)
	err := client.UpdateRef(context.Background(), testRepo, "main", "C1")
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnprocessableEntity, remoteErr.StatusCode)
	assert.Equal(t, "Update is not a fast forward", remoteErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_ListCommitsAndUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("sha"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		writeJSON(t, w, http.StatusOK, []map[string]any{
			{
				"sha": "abc1234def",
				"commit": map[string]any{
					"message": "feat(api): add endpoint\n\nbody",
					"author":  map[string]string{"name": "Jane", "date": "2024-01-15T10:00:00Z"},
				},
			},
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{"login": "jane"})
	})

	client := newTestClient(t, mux)
	commits, err := client.ListCommits(context.Background(), testRepo, "main", 0)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "abc1234def", commits[0].SHA)
	assert.Equal(t, "Jane", commits[0].Author)
	assert.True(t, strings.HasPrefix(commits[0].Message, "feat(api)"))
	assert.Equal(t, 2024, commits[0].Date.Year())

	login, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane", login)
}
