package source

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/yz4230/rolling/internal/entity"
	"github.com/yz4230/rolling/internal/git"
)

// GitFetcher clones with the git binary; used for repositories reachable by
// URL or path, such as the bare repository a post-receive hook runs in.
type GitFetcher struct {
	URL    string
	Owner  string
	Repo   string
	Branch string
}

// Fetch implements Fetcher.
func (f *GitFetcher) Fetch(ctx context.Context, dest, ref string) (*entity.SourceArtifact, error) {
	log := zerolog.Ctx(ctx)
	log.Info().Str("url", f.URL).Str("branch", f.Branch).Str("ref", ref).Msg("cloning source")

	if err := git.Clone(ctx, f.URL, f.Branch, dest); err != nil {
		return nil, fmt.Errorf("clone %s: %w", f.URL, err)
	}
	if ref != "" {
		if err := git.Checkout(ctx, dest, ref); err != nil {
			return nil, fmt.Errorf("checkout %s: %w", ref, err)
		}
	}
	commit, err := git.RevParse(ctx, dest, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	return &entity.SourceArtifact{
		Owner:  f.Owner,
		Repo:   f.Repo,
		Branch: f.Branch,
		Commit: commit,
		Dir:    dest,
	}, nil
}
