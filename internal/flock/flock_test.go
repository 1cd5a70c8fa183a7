//go:build unix

package flock_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/mavsign/internal/errors"
	"github.com/mrz1836/mavsign/internal/flock"
)

func TestTryLock(t *testing.T) {
	t.Parallel()

	t.Run("creates file and locks it", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "signing.key.lock")

		release, err := flock.TryLock(path)
		require.NoError(t, err)
		assert.FileExists(t, path)
		require.NoError(t, release())
	})

	t.Run("second caller gets ErrLockHeld", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "signing.key.lock")

		release, err := flock.TryLock(path)
		require.NoError(t, err)

		_, err = flock.TryLock(path)
		require.ErrorIs(t, err, errors.ErrLockHeld)

		require.NoError(t, release())

		release2, err := flock.TryLock(path)
		require.NoError(t, err)
		require.NoError(t, release2())
	})

	t.Run("lock is per open file, not per process", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "signing.key.lock")

		release, err := flock.TryLock(path)
		require.NoError(t, err)
		defer func() { _ = release() }()

		for range 3 {
			_, err := flock.TryLock(path)
			require.ErrorIs(t, err, errors.ErrLockHeld)
		}
	})

	t.Run("missing directory fails", func(t *testing.T) {
		t.Parallel()
		_, err := flock.TryLock(filepath.Join(t.TempDir(), "nope", "x.lock"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opening lock file")
	})
}
