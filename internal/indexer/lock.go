package indexer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// IndexLock is the single-writer lock of an index database. It is a
// cross-process lock on <index>.lock next to the index file, so two index
// runs against the same database never interleave their writes.
type IndexLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewIndexLock creates the lock for the index database at indexPath.
func NewIndexLock(indexPath string) *IndexLock {
	lockPath := indexPath + ".lock"
	return &IndexLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock blocks until the lock is acquired.
func (l *IndexLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock acquires the lock without blocking. It returns false when another
// process (or another IndexLock in this one) holds it.
func (l *IndexLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Calling it on an unlocked IndexLock is a no-op.
// The lock file itself is left in place.
func (l *IndexLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	return nil
}

// Path returns the path of the lock file.
func (l *IndexLock) Path() string {
	return l.path
}
