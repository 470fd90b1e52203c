//go:build !windows

package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// acquireFileLock takes an exclusive advisory lock on path (created if
// absent) via flock(2), blocking until it is free. The returned release
// function unlocks and closes the file; it is safe to call more than once.
func acquireFileLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, err
	}
	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return f.Close()
	}, nil
}
