package source

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return strings.TrimSpace(string(out))
}

func TestGitFetch(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	work := t.TempDir()
	gitCmd(t, work, "init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(work, "Dockerfile"), []byte("FROM scratch\n"), 0o644))
	gitCmd(t, work, "add", ".")
	gitCmd(t, work, "commit", "-m", "first")
	first := gitCmd(t, work, "rev-parse", "HEAD")
	require.NoError(t, os.WriteFile(filepath.Join(work, "README"), []byte("hi\n"), 0o644))
	gitCmd(t, work, "add", ".")
	gitCmd(t, work, "commit", "-m", "second")
	second := gitCmd(t, work, "rev-parse", "HEAD")

	f := &GitFetcher{URL: work, Owner: "owner", Repo: "repo", Branch: "main"}

	art, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "head"), "")
	require.NoError(t, err)
	assert.Equal(t, second, art.Commit)
	assert.FileExists(t, filepath.Join(art.Dir, "README"))

	art, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "pinned"), first)
	require.NoError(t, err)
	assert.Equal(t, first, art.Commit)
	assert.NoFileExists(t, filepath.Join(art.Dir, "README"))
}
