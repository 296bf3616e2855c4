package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headSHA = "abcdef1234567890abcdef1234567890abcdef12"

func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "owner-repo-abcdef1/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "owner-repo-abcdef1/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newGitHub(t *testing.T, body []byte) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/branches/main", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer t0ken" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"main","commit":{"sha":"` + headSHA + `"}}`))
	})
	mux.HandleFunc("/repos/owner/repo/tarball/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-gzip")
		w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubFetch(t *testing.T) {
	srv := newGitHub(t, tarball(t, map[string]string{"Dockerfile": "FROM scratch\n", "deploy/x.yaml": "a: b\n"}))
	f := &GitHubFetcher{Owner: "owner", Repo: "repo", Branch: "main", Token: StaticToken("t0ken"), BaseURL: srv.URL}

	dest := filepath.Join(t.TempDir(), "source")
	art, err := f.Fetch(context.Background(), dest, "")
	require.NoError(t, err)

	assert.Equal(t, headSHA, art.Commit)
	assert.Equal(t, filepath.Join(dest, "owner-repo-abcdef1"), art.Dir)
	b, err := os.ReadFile(filepath.Join(art.Dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(b))
}

func TestGitHubFetchExplicitRef(t *testing.T) {
	srv := newGitHub(t, tarball(t, map[string]string{"Dockerfile": "FROM scratch\n"}))
	f := &GitHubFetcher{Owner: "owner", Repo: "repo", Branch: "main", Token: StaticToken("t0ken"), BaseURL: srv.URL}

	art, err := f.Fetch(context.Background(), t.TempDir(), "1234567deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "1234567deadbeef", art.Commit)
}

func TestGitHubFetchFailures(t *testing.T) {
	srv := newGitHub(t, nil)

	bad := &GitHubFetcher{Owner: "owner", Repo: "repo", Branch: "main", Token: StaticToken("wrong"), BaseURL: srv.URL}
	_, err := bad.Fetch(context.Background(), t.TempDir(), "")
	assert.Error(t, err)

	missing := &GitHubFetcher{Owner: "owner", Repo: "repo", Branch: "nope", Token: StaticToken("t0ken"), BaseURL: srv.URL}
	_, err = missing.Fetch(context.Background(), t.TempDir(), "")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	empty := &GitHubFetcher{Owner: "owner", Repo: "repo", Branch: "main", Token: StaticToken(""), BaseURL: srv.URL}
	_, err = empty.Fetch(context.Background(), t.TempDir(), "")
	assert.Error(t, err)
}
