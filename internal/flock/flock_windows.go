//go:build windows

package flock

import (
	"os"

	"golang.org/x/sys/windows"
)

// The whole file is locked through a one-byte range at offset 0.
const (
	rangeLow  = 1
	rangeHigh = 0
)

// lockFile takes a non-blocking exclusive LockFileEx lock on f.
func lockFile(f *os.File) error {
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		rangeLow,
		rangeHigh,
		new(windows.Overlapped),
	)
}

func unlockFile(f *os.File) error {
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, rangeLow, rangeHigh, new(windows.Overlapped))
}
