// Package testutil provides testing utilities for mavsign.
//
// This package contains mock errors and test helpers used across test files.
// It should only be imported by test files (*_test.go) and MUST NOT import
// other internal packages, so any package's internal tests can use it.
package testutil

import "errors"

// Mock errors for testing purposes.
// These errors are used to simulate various failure scenarios in tests.
var (
	// ErrMockNetwork indicates a mock network error occurred (used in tests).
	ErrMockNetwork = errors.New("network error")

	// ErrMockWrite indicates a mock writer failed (used in tests).
	ErrMockWrite = errors.New("write failed")

	// ErrMockClockFault indicates a mock clock read failed (used in tests).
	ErrMockClockFault = errors.New("clock fault")
)
