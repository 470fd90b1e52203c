//go:build windows

package store

import (
	"os"
	"syscall"
	"unsafe"
)

// acquireFileLock takes an exclusive lock on path (created if absent) via
// LockFileEx, blocking until it is free. The returned release function
// unlocks and closes the file; it is safe to call more than once.
func acquireFileLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	const lockfileExclusiveLock = 0x2
	k32 := syscall.NewLazyDLL("kernel32.dll")
	proc := k32.NewProc("LockFileEx")
	var overlapped syscall.Overlapped
	r1, _, e1 := proc.Call(
		f.Fd(),
		uintptr(lockfileExclusiveLock),
		0, ^uintptr(0), ^uintptr(0),
		uintptr(unsafe.Pointer(&overlapped)),
	)
	if r1 == 0 {
		_ = f.Close()
		if e1 != nil && e1 != syscall.Errno(0) {
			return nil, e1
		}
		return nil, syscall.EINVAL
	}

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		unlockProc := k32.NewProc("UnlockFileEx")
		_, _, _ = unlockProc.Call(f.Fd(), 0, ^uintptr(0), ^uintptr(0), uintptr(unsafe.Pointer(&overlapped)))
		return f.Close()
	}, nil
}
