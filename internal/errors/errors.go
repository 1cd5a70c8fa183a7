// Package errors provides centralized error handling for mavsign.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
var (
	// ErrContextFaulted indicates that a signing context suffered a fault while
	// holding its state lock and refuses all further work.
	ErrContextFaulted = errors.New("signing context faulted")

	// ErrRejected indicates that an inbound frame failed signature verification.
	ErrRejected = errors.New("frame rejected")

	// ErrVerificationFailed indicates that a verify run rejected at least one frame
	// and the caller asked for that to be treated as failure.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrInvalidKeySize indicates that secret key material has the wrong length.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrKeyNotLoaded indicates that a key was requested before it was loaded.
	ErrKeyNotLoaded = errors.New("signing key not loaded")

	// ErrKeyExists indicates an attempt to generate a key over an existing one.
	ErrKeyExists = errors.New("signing key already exists")

	// ErrLockHeld indicates that another process holds the key generation lock.
	ErrLockHeld = errors.New("lock held by another process")

	// ErrShortFrame indicates that a stream ended in the middle of a frame.
	ErrShortFrame = errors.New("truncated frame")

	// ErrInvalidFrame indicates that bytes do not form a MAVLink frame.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalidSigning indicates an invalid signing configuration value.
	ErrConfigInvalidSigning = errors.New("invalid signing configuration")

	// ErrConfigInvalidClock indicates an invalid clock configuration value.
	ErrConfigInvalidClock = errors.New("invalid clock configuration")

	// ErrConfigInvalidMetrics indicates an invalid metrics configuration value.
	ErrConfigInvalidMetrics = errors.New("invalid metrics configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrNoInput indicates that a command was run without any input files.
	ErrNoInput = errors.New("no input files")
)

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}
