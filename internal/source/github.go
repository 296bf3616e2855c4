package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v28/github"
	"github.com/moby/go-archive"
	"github.com/rs/zerolog"
	"github.com/yz4230/rolling/internal/entity"
	"golang.org/x/oauth2"
)

var ErrBranchNotFound = errors.New("branch not found")

// GitHubFetcher downloads the tarball of a branch head through the GitHub API.
type GitHubFetcher struct {
	Owner  string
	Repo   string
	Branch string
	Token  TokenFunc
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

func (f *GitHubFetcher) client(ctx context.Context) (*github.Client, error) {
	token, err := f.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve github token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("github token is empty")
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)
	if f.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(f.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}
	return client, nil
}

// Fetch implements Fetcher.
func (f *GitHubFetcher) Fetch(ctx context.Context, dest, ref string) (*entity.SourceArtifact, error) {
	log := zerolog.Ctx(ctx)
	client, err := f.client(ctx)
	if err != nil {
		return nil, err
	}

	commit := ref
	if commit == "" {
		branch, resp, err := client.Repositories.GetBranch(ctx, f.Owner, f.Repo, f.Branch)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s/%s@%s", ErrBranchNotFound, f.Owner, f.Repo, f.Branch)
			}
			return nil, fmt.Errorf("get branch %s: %w", f.Branch, err)
		}
		commit = branch.GetCommit().GetSHA()
		if commit == "" {
			return nil, fmt.Errorf("branch %s has no head commit", f.Branch)
		}
	}
	log.Info().Str("repo", f.Owner+"/"+f.Repo).Str("branch", f.Branch).Str("commit", commit).Msg("fetching source")

	tarball, err := os.CreateTemp("", "rolling-source-*.tar.gz")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tarball.Name())
	defer tarball.Close()

	req, err := client.NewRequest(http.MethodGet, fmt.Sprintf("repos/%s/%s/tarball/%s", f.Owner, f.Repo, commit), nil)
	if err != nil {
		return nil, err
	}
	if _, err := client.Do(ctx, req, tarball); err != nil {
		return nil, fmt.Errorf("download tarball: %w", err)
	}
	if _, err := tarball.Seek(0, 0); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("create source dir: %w", err)
	}
	if err := archive.Untar(tarball, dest, &archive.TarOptions{NoLchown: true}); err != nil {
		return nil, fmt.Errorf("extract tarball: %w", err)
	}
	root, err := singleRoot(dest)
	if err != nil {
		return nil, err
	}

	log.Info().Str("dir", root).Msg("source fetched")
	return &entity.SourceArtifact{
		Owner:  f.Owner,
		Repo:   f.Repo,
		Branch: f.Branch,
		Commit: commit,
		Dir:    root,
	}, nil
}

// singleRoot descends into the one top-level directory GitHub wraps archives in.
func singleRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read source dir: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(dir, entries[0].Name()), nil
	}
	return dir, nil
}
