// Package lock guards the data root against concurrent server processes.
// Two FlexSearch servers sharing one data root would corrupt each other's
// shard directories; a cross-platform file lock prevents that.
package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".flexsearch.lock"

// DataRootLock is an exclusive cross-process lock on a data root.
type DataRootLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lock for the given data root. The lock file lives at
// <dataRoot>/.flexsearch.lock.
func New(dataRoot string) *DataRootLock {
	path := filepath.Join(dataRoot, lockFileName)
	return &DataRootLock{
		path:  path,
		flock: flock.New(path),
	}
}

// TryLock attempts to acquire the lock without blocking. Returns false when
// another process holds it.
func (l *DataRootLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("creating lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquiring data root lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock and removes the lock file. Safe to call when the
// lock was never acquired.
func (l *DataRootLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing data root lock: %w", err)
	}
	l.locked = false
	_ = os.Remove(l.path)
	return nil
}

// Path returns the lock file location.
func (l *DataRootLock) Path() string {
	return l.path
}
