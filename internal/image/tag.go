package image

import "strings"

const (
	LatestTag    = "latest"
	shortHashLen = 7
)

// DeriveTag turns a resolved commit id into the image tag pushed for it:
// the first seven characters, or "latest" when the commit is unknown.
func DeriveTag(commit string) string {
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return LatestTag
	}
	if len(commit) > shortHashLen {
		return commit[:shortHashLen]
	}
	return commit
}

// WithTag appends tag to a repository reference that carries no tag.
func WithTag(repository, tag string) string {
	return repository + ":" + tag
}
