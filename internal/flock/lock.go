package flock

import (
	"os"

	"github.com/mrz1836/mavsign/internal/errors"
)

// TryLock creates path if needed and takes an exclusive, non-blocking lock on it.
// The returned function releases the lock and closes the file.
// If another process holds the lock, the error wraps errors.ErrLockHeld.
func TryLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) //nolint:gosec // path is built from the configured key directory
	if err != nil {
		return nil, errors.Wrap(err, "opening lock file")
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(errors.ErrLockHeld, "%s: %v", path, err)
	}

	return func() error {
		unlockErr := unlockFile(f)
		closeErr := f.Close()
		if unlockErr != nil {
			return unlockErr
		}
		return closeErr
	}, nil
}
