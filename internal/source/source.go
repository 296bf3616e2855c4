// Package source produces the source-tree artifact of a pipeline run.
package source

import (
	"context"

	"github.com/yz4230/rolling/internal/entity"
)

// Fetcher checks out a repository into dest. An empty ref means the head of
// the configured branch.
type Fetcher interface {
	Fetch(ctx context.Context, dest, ref string) (*entity.SourceArtifact, error)
}

// TokenFunc resolves the access credential at the start of a fetch.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken returns a TokenFunc always yielding token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}
