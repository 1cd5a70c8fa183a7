// Package flock provides cross-platform advisory file locks.
//
// mavsign uses it to keep two processes from generating a signing key into
// the same key directory at once:
//
//	release, err := flock.TryLock(filepath.Join(dir, "signing.key.lock"))
//	if err != nil {
//	    return err // errors.ErrLockHeld if another process has it
//	}
//	defer release()
package flock
