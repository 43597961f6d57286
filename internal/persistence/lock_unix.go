//go:build unix

package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// DirLock is an exclusive advisory lock on a storage directory.
type DirLock struct {
	f *os.File
}

// LockDir takes a non-blocking exclusive flock on dir/.lock. It fails with
// ErrLocked when another process holds it.
func LockDir(dir string) (*DirLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index dir: %w", err)
	}
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, lenserr.New(lenserr.CodePersistenceLocked, lenserr.ErrLocked,
				"index directory is in use by another process", lenserr.FieldPath(dir))
		}
		return nil, fmt.Errorf("failed to lock index dir: %w", err)
	}
	return &DirLock{f: f}, nil
}

// Unlock releases the lock. Safe to call on a nil lock.
func (l *DirLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
