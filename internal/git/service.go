package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Clone makes a shallow clone of branch from url into dir.
func Clone(ctx context.Context, url, branch, dir string) error {
	args := []string{"clone", "--depth=1"}
	if branch != "" {
		args = append(args, "--branch="+branch)
	}
	args = append(args, url, dir)
	_, err := run(ctx, "", args...)
	return err
}

// Checkout checks ref out detached, fetching it from origin when the clone
// does not have it yet.
func Checkout(ctx context.Context, dir, ref string) error {
	if _, err := run(ctx, dir, "checkout", "--detach", ref); err == nil {
		return nil
	}
	if _, err := run(ctx, dir, "fetch", "--depth=1", "origin", ref); err != nil {
		return err
	}
	_, err := run(ctx, dir, "checkout", "--detach", "FETCH_HEAD")
	return err
}

// RevParse resolves rev to a full commit id.
func RevParse(ctx context.Context, dir, rev string) (string, error) {
	out, err := run(ctx, dir, "rev-parse", rev)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// InitBare creates a bare repository at repodir if it does not exist.
func InitBare(ctx context.Context, repodir string) error {
	log := zerolog.Ctx(ctx)
	if _, err := os.Stat(filepath.Join(repodir, "HEAD")); err == nil {
		return nil
	}
	if err := os.MkdirAll(repodir, os.ModePerm); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	if _, err := run(ctx, "", "init", "--bare", repodir); err != nil {
		return fmt.Errorf("init bare repo: %w", err)
	}
	log.Info().Str("dir", repodir).Msg("initialized bare git repository")
	return nil
}

// InstallPostReceiveHook writes a post-receive hook into a bare repository
// that hands the pushed refs to `<binary> hook post-receive`.
func InstallPostReceiveHook(ctx context.Context, repodir, binary string, extraArgs ...string) (string, error) {
	log := zerolog.Ctx(ctx)
	hooksDir := filepath.Join(repodir, "hooks")
	if err := os.MkdirAll(hooksDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("create hooks dir: %w", err)
	}

	invocation := append([]string{shellQuote(binary), "hook", "post-receive"}, quoteAll(extraArgs)...)
	scriptPath := filepath.Join(hooksDir, "post-receive")
	scriptContent := shellScript("exec " + strings.Join(invocation, " "))
	if err := os.WriteFile(scriptPath, []byte(scriptContent), 0o755); err != nil {
		return "", fmt.Errorf("write post-receive hook: %w", err)
	}

	log.Info().Str("hook", scriptPath).Msg("installed post-receive hook")
	return scriptPath, nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	log := zerolog.Ctx(ctx)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Debug().Strs("command", cmd.Args).Msg("executing git command")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func shellScript(lines ...string) string {
	return "#!/bin/sh\n" + strings.Join(lines, "\n") + "\n"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = shellQuote(s)
	}
	return out
}
