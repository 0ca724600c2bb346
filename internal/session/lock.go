package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrSessionActive is returned when another dubctl process holds the lock.
var ErrSessionActive = errors.New("another dubctl session is already running")

const lockFilename = "session.lock"

// Lock is an exclusive advisory lock on the state directory.
type Lock struct {
	file *flock.Flock
}

// AcquireLock takes the session lock in dir without blocking.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	path := filepath.Join(dir, lockFilename)
	file := flock.New(path)
	ok, err := file.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock held on %s)", ErrSessionActive, path)
	}
	return &Lock{file: file}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil || l.file == nil {
		return ""
	}
	return l.file.Path()
}

// Release drops the lock. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Unlock()
}
