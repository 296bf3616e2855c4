// Package artifactstore keeps the files each run produces (rendered
// manifests, imagedefinitions.json) after the run workspace is gone.
package artifactstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

// Store saves a local file under key and returns where it ended up.
type Store interface {
	Put(ctx context.Context, key, file string) (string, error)
}

// Key joins the run id and file name into an object key.
func Key(runID, name string) string {
	return path.Join("runs", runID, name)
}

// FS copies artifacts below a local directory.
type FS struct {
	Root string
}

func (s *FS) Put(_ context.Context, key, file string) (string, error) {
	dst := filepath.Join(s.Root, filepath.FromSlash(key))
	if filepath.Clean(dst) == filepath.Clean(file) {
		return dst, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	in, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	return dst, out.Close()
}
