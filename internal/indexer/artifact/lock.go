package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
)

const LockFile = ".build.lock"

// BuildLock is an exclusive cross-process lock on an artifact directory.
// Only one build may write a directory at a time.
type BuildLock struct {
	fl *flock.Flock
}

// TryLock acquires the build lock for dir without blocking. If another
// build holds it, ErrBuildInProgress is returned.
func TryLock(dir string) (*BuildLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	fl := flock.New(filepath.Join(dir, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring build lock: %w", err)
	}
	if !ok {
		return nil, apperrors.ErrBuildInProgress
	}
	return &BuildLock{fl: fl}, nil
}

// Release unlocks the directory.
func (l *BuildLock) Release() error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing build lock: %w", err)
	}
	return nil
}
