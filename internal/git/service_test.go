package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testContext() context.Context {
	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	return logger.WithContext(context.Background())
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestInitBareAndHook(t *testing.T) {
	requireGit(t)
	ctx := testContext()
	repodir := filepath.Join(t.TempDir(), "app.git")

	if err := InitBare(ctx, repodir); err != nil {
		t.Fatalf("InitBare error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repodir, "HEAD")); err != nil {
		t.Fatalf("expected HEAD in repo: %v", err)
	}
	if err := InitBare(ctx, repodir); err != nil {
		t.Fatalf("second InitBare error: %v", err)
	}

	path, err := InstallPostReceiveHook(ctx, repodir, "/usr/local/bin/rolling", "--config", "/etc/rolling.yaml")
	if err != nil {
		t.Fatalf("InstallPostReceiveHook error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "#!/bin/sh\nexec '/usr/local/bin/rolling' hook post-receive '--config' '/etc/rolling.yaml'\n"
	if string(b) != want {
		t.Fatalf("unexpected hook.\n got: %q\nwant: %q", string(b), want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("hook is not executable: %v", info.Mode())
	}
}

func TestCloneAndRevParse(t *testing.T) {
	requireGit(t)
	ctx := testContext()
	work := t.TempDir()

	for _, args := range [][]string{
		{"init", "--initial-branch=main", work},
		{"-C", work, "-c", "user.name=t", "-c", "user.email=t@example.com", "commit", "--allow-empty", "-m", "init"},
	} {
		if out, err := exec.Command("git", args...).CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	head, err := RevParse(ctx, work, "HEAD")
	if err != nil {
		t.Fatalf("RevParse error: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "clone")
	if err := Clone(ctx, "file://"+work, "main", dest); err != nil {
		t.Fatalf("Clone error: %v", err)
	}
	got, err := RevParse(ctx, dest, "HEAD")
	if err != nil {
		t.Fatalf("RevParse clone error: %v", err)
	}
	if got != head || len(strings.TrimSpace(got)) != 40 {
		t.Fatalf("clone head %q, want %q", got, head)
	}
}
