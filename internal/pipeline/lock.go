package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yz4230/rolling/internal/entity"
	"golang.org/x/sys/unix"
)

const lockFile = "pipeline.lock"

// fileLock is an exclusive flock shared by every rolling process using the
// same work dir.
type fileLock struct {
	f *os.File
}

func acquireFileLock(dir string) (*fileLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, entity.ErrRunInProgress
		}
		return nil, fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	l.f.Close()
}
